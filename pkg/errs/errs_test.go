package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorFormat(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  *ScrapeError
		want string
	}{
		{
			name: "source and cause",
			err:  NewNetwork("cargurus", "fetch page 2", base),
			want: "[network] cargurus: fetch page 2: connection refused",
		},
		{
			name: "source only",
			err:  NewParse("craigslist", "no listings found", nil),
			want: "[parse] craigslist: no listings found",
		},
		{
			name: "cause only",
			err:  NewCache("open store", base),
			want: "[cache] open store: connection refused",
		},
		{
			name: "bare",
			err:  NewConfig("ZIP_CODE is required"),
			want: "[config] ZIP_CODE is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewBrowser("cars.com", "navigate", base)

	assert.True(t, errors.Is(err, base))
	assert.Equal(t, base, errors.Unwrap(err))
}

func TestIsKind(t *testing.T) {
	err := NewRateLimit("cargurus", "429 after retries", nil)

	assert.True(t, IsKind(err, KindRateLimit))
	assert.False(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(errors.New("plain"), KindRateLimit))

	wrapped := fmt.Errorf("scrape failed: %w", err)
	assert.True(t, IsKind(wrapped, KindRateLimit))
}
