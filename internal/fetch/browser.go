package fetch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"carscraper/logger"
	"carscraper/pkg/errs"
)

// BrowserOptions configures the headless-browser fetcher
type BrowserOptions struct {
	// Source tags errors and log lines with the site name
	Source string

	// Headless runs Chrome without a window; off is useful when debugging
	Headless bool

	// ChromeBin overrides binary auto-detection
	ChromeBin string

	// Timeout bounds page navigation
	Timeout time.Duration

	// Wait is how long to wait for the ready selector after navigation
	Wait time.Duration
}

// Browser fetches fully rendered pages through headless Chrome. The
// browser process starts on first use and lives until Close, so paging
// through results reuses one session and its cookies.
type Browser struct {
	opts    BrowserOptions
	rootCtx context.Context
	cancels []context.CancelFunc
	started bool
	log     *logger.Logger
}

// NewBrowser creates a lazy browser fetcher; Chrome is not launched yet
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Wait == 0 {
		opts.Wait = 12 * time.Second
	}
	return &Browser{
		opts: opts,
		log:  logger.ForBrowser(),
	}
}

func (b *Browser) start() {
	chromeBin := b.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin != "" {
		b.log.Debug().Str("binary", chromeBin).Msg("using browser binary")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgents[0]),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	rootCtx, cancelRoot := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.rootCtx = rootCtx
	b.cancels = []context.CancelFunc{cancelRoot, cancelAlloc}
	b.started = true
}

// Fetch renders url in a fresh tab and returns the document HTML. It
// waits up to Wait for waitSelector to appear; a quiet timeout there is
// tolerated since the markup may be server-rendered anyway.
func (b *Browser) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !b.started {
		b.start()
	}

	tabCtx, cancelTab := chromedp.NewContext(b.rootCtx)
	defer cancelTab()

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", errs.NewBrowser(b.opts.Source, "navigate "+url, err)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, b.opts.Wait)
	defer cancelWait()
	err := chromedp.Run(waitCtx, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return "", errs.NewBrowser(b.opts.Source, "wait for "+waitSelector, err)
		}
		b.log.Debug().Str("selector", waitSelector).Msg("selector never appeared, reading DOM anyway")
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", errs.NewBrowser(b.opts.Source, "read document of "+url, err)
	}
	return html, nil
}

// Close shuts the browser down; safe to call without a prior Fetch
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	b.started = false
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
