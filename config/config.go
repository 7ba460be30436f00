package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"carscraper/pkg/errs"
)

// Fetch modes for sites that can fall back to a real browser
const (
	FetchModeAuto    = "auto"
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Craigslist category selection
const (
	CategoriesBoth   = "both"
	CategoryByOwner  = "cto"
	CategoryByDealer = "cta"
)

// Config represents the application configuration
type Config struct {
	// Search parameters shared by every source
	ZipCode     string
	RadiusMiles int
	PriceMax    int
	MileageMax  int
	YearMin     int

	// CarGurus
	CarGurusMaxPages int
	CarGurusTimeout  time.Duration

	// Cars.com
	CarsMaxPages    int
	CarsTimeout     time.Duration
	CarsFetchMode   string
	CarsBrowserWait time.Duration
	CarsPageSize    int

	// Craigslist
	CraigMaxPages   int
	CraigTimeout    time.Duration
	CraigDomain     string
	CraigCategories string

	// HTTP response cache
	HTTPCache        bool
	HTTPCacheBackend string
	HTTPCachePath    string
	HTTPCacheAddr    string
	HTTPCacheTTL     time.Duration

	// Browser fallback
	Headless  bool
	ChromeBin string

	// Output
	OutputDir string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		ZipCode:     getEnv("ZIP_CODE", "19103"),
		RadiusMiles: getEnvInt("RADIUS_MILES", 200),
		PriceMax:    getEnvInt("PRICE_MAX", 4000),
		MileageMax:  getEnvInt("MILEAGE_MAX", 200000),
		YearMin:     getEnvInt("YEAR_MIN", 2004),

		CarGurusMaxPages: getEnvInt("CARGURUS_MAX_PAGES", 10),
		CarGurusTimeout:  getEnvSeconds("CARGURUS_TIMEOUT", 45),

		CarsMaxPages:    getEnvInt("CARS_MAX_PAGES", 10),
		CarsTimeout:     getEnvSeconds("CARS_TIMEOUT", 45),
		CarsFetchMode:   strings.ToLower(getEnv("CARS_FETCH_MODE", FetchModeAuto)),
		CarsBrowserWait: getEnvSeconds("CARS_BROWSER_WAIT", 12),
		CarsPageSize:    getEnvInt("CARS_PAGE_SIZE", 50),

		CraigMaxPages:   getEnvInt("CRAIG_MAX_PAGES", 9999),
		CraigTimeout:    getEnvSeconds("CRAIG_TIMEOUT", 45),
		CraigDomain:     getEnv("CRAIGS_DOMAIN", "philadelphia"),
		CraigCategories: strings.ToLower(getEnv("CRAIG_CATEGORIES", CategoriesBoth)),

		HTTPCache:        getEnvBool("HTTP_CACHE", false),
		HTTPCacheBackend: strings.ToLower(getEnv("HTTP_CACHE_BACKEND", "sqlite")),
		HTTPCachePath:    getEnv("HTTP_CACHE_PATH", "data/http_cache.db"),
		HTTPCacheAddr:    getEnv("HTTP_CACHE_ADDR", ""),
		HTTPCacheTTL:     getEnvSeconds("HTTP_CACHE_TTL", 0),

		Headless:  getEnvBool("HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),

		OutputDir: getEnv("OUTPUT_DIR", "data"),
	}
}

// Validate checks that the loaded values can drive a run
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ZipCode) == "" {
		return errs.NewConfig("ZIP_CODE must not be empty")
	}
	if c.RadiusMiles <= 0 {
		return errs.NewConfig("RADIUS_MILES must be positive")
	}
	if c.PriceMax <= 0 {
		return errs.NewConfig("PRICE_MAX must be positive")
	}
	if c.MileageMax <= 0 {
		return errs.NewConfig("MILEAGE_MAX must be positive")
	}
	if c.YearMin < 1900 || c.YearMin > 2100 {
		return errs.NewConfig("YEAR_MIN must be a four-digit year")
	}
	if c.CarsPageSize <= 0 {
		return errs.NewConfig("CARS_PAGE_SIZE must be positive")
	}

	switch c.CarsFetchMode {
	case FetchModeAuto, FetchModeHTTP, FetchModeBrowser:
	default:
		return errs.NewConfig("CARS_FETCH_MODE must be auto, http or browser")
	}

	switch c.CraigCategories {
	case CategoriesBoth, CategoryByOwner, CategoryByDealer:
	default:
		return errs.NewConfig("CRAIG_CATEGORIES must be both, cto or cta")
	}

	switch c.HTTPCacheBackend {
	case "sqlite", "memcache", "redis", "memory":
	default:
		return errs.NewConfig("HTTP_CACHE_BACKEND must be sqlite, memcache, redis or memory")
	}
	if c.HTTPCache {
		switch c.HTTPCacheBackend {
		case "memcache", "redis":
			if strings.TrimSpace(c.HTTPCacheAddr) == "" {
				return errs.NewConfig("HTTP_CACHE_ADDR is required for the " + c.HTTPCacheBackend + " backend")
			}
		case "sqlite":
			if strings.TrimSpace(c.HTTPCachePath) == "" {
				return errs.NewConfig("HTTP_CACHE_PATH is required for the sqlite backend")
			}
		}
	}

	return nil
}

// CraigCategoryList expands the category selection into search paths
func (c *Config) CraigCategoryList() []string {
	if c.CraigCategories == CategoriesBoth {
		return []string{CategoryByOwner, CategoryByDealer}
	}
	return []string{c.CraigCategories}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvSeconds reads an integer number of seconds as a duration
func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	default:
		return defaultValue
	}
}
