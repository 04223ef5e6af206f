package news

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"confluence-trading-bot/internal/logger"
)

// Source describes one headline site and the selector that yields its
// headline anchors.
type Source struct {
	Name             string
	BaseURL          string
	SearchPath       string // "{symbol}" is replaced with the instrument
	HeadlineSelector string
}

func defaultSources() []Source {
	return []Source{
		{
			Name:             "Investing",
			BaseURL:          "https://www.investing.com",
			SearchPath:       "/search/?q={symbol}&tab=news",
			HeadlineSelector: "div.articleItem a.title",
		},
		{
			Name:             "FXStreet",
			BaseURL:          "https://www.fxstreet.com",
			SearchPath:       "/search?q={symbol}",
			HeadlineSelector: "h4.fxs_headline_tiny a",
		},
	}
}

type cacheEntry struct {
	headlines []string
	fetchedAt time.Time
}

// Scraper collects recent headlines per instrument for the oracle prompt.
// Results are cached with a TTL so repeated signal cycles do not hammer the
// sources.
type Scraper struct {
	sources      []Source
	maxHeadlines int
	ttl          time.Duration
	timeout      time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewScraper(maxHeadlines int, ttl time.Duration) *Scraper {
	return &Scraper{
		sources:      defaultSources(),
		maxHeadlines: maxHeadlines,
		ttl:          ttl,
		timeout:      10 * time.Second,
		cache:        map[string]cacheEntry{},
	}
}

// Headlines returns cached or freshly scraped headlines. Scrape failures are
// logged and yield whatever was collected; news is advisory context, never a
// cycle blocker.
func (s *Scraper) Headlines(ctx context.Context, instrument string) []string {
	s.mu.Lock()
	if e, ok := s.cache[instrument]; ok && time.Since(e.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return e.headlines
	}
	s.mu.Unlock()

	var all []string
	for _, src := range s.sources {
		if len(all) >= s.maxHeadlines {
			break
		}
		hs, err := s.scrapeSource(ctx, src, instrument, s.maxHeadlines-len(all))
		if err != nil {
			logger.Warn(ctx, "Headline scrape failed",
				"source", src.Name,
				"instrument", instrument,
				"error", err,
			)
			continue
		}
		all = append(all, hs...)
	}

	s.mu.Lock()
	s.cache[instrument] = cacheEntry{headlines: all, fetchedAt: time.Now()}
	s.mu.Unlock()
	return all
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source, instrument string, limit int) ([]string, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(domain(src.BaseURL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	var headlines []string
	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find(src.HeadlineSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			title := strings.TrimSpace(sel.Text())
			if title != "" {
				headlines = append(headlines, title)
			}
			return len(headlines) < limit
		})
	})

	target := src.BaseURL + strings.ReplaceAll(src.SearchPath, "{symbol}", url.QueryEscape(instrument))
	if err := c.Visit(target); err != nil {
		return nil, err
	}
	c.Wait()
	return headlines, nil
}

func domain(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return u.Host
}
