package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeadlinesServedFromCache(t *testing.T) {
	s := NewScraper(10, time.Minute)
	s.sources = nil // no network in tests
	s.cache["EURUSD"] = cacheEntry{
		headlines: []string{"ECB holds rates"},
		fetchedAt: time.Now(),
	}

	got := s.Headlines(context.Background(), "EURUSD")
	assert.Equal(t, []string{"ECB holds rates"}, got)
}

func TestHeadlinesCacheExpires(t *testing.T) {
	s := NewScraper(10, time.Minute)
	s.sources = nil
	s.cache["EURUSD"] = cacheEntry{
		headlines: []string{"stale"},
		fetchedAt: time.Now().Add(-2 * time.Minute),
	}

	got := s.Headlines(context.Background(), "EURUSD")
	assert.Empty(t, got, "expired entry is refetched, and with no sources that yields nothing")
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "www.fxstreet.com", domain("https://www.fxstreet.com"))
}
