package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// GeoInfo is the raw geolocation payload plus the fields the pipeline reads.
type GeoInfo struct {
	Raw         json.RawMessage
	CountryCode string
}

func (g GeoInfo) Empty() bool { return len(g.Raw) == 0 }

// HolidayList is the raw holiday payload, nil when unknown.
type HolidayList json.RawMessage

// Client talks to the geolocation and holiday APIs. Lookups are best-effort:
// failures are logged and reported as empty values.
type Client struct {
	http       *http.Client
	apiKey     string
	geoURL     string
	holidayURL string
	backoff    func() retry.Backoff
	cache      GeoCache
	logger     *zap.SugaredLogger
}

func NewClient(cfg Config, cache GeoCache, logger *zap.SugaredLogger) *Client {
	base, retries := cfg.RetryBase, cfg.MaxRetries
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		geoURL:     cfg.GeoURL,
		holidayURL: cfg.HolidayURL,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(retries, retry.NewExponential(base))
		},
		cache:  cache,
		logger: logger,
	}
}

// GeoLookup resolves ip to a location. Cached answers are served first.
func (c *Client) GeoLookup(ctx context.Context, ip string) GeoInfo {
	if ip == "" {
		return GeoInfo{}
	}
	if c.cache != nil {
		if g, ok := c.cache.Get(ctx, ip); ok {
			return g
		}
	}
	q := url.Values{"api_key": {c.apiKey}, "ip_address": {ip}}
	body, err := c.get(ctx, c.geoURL, q)
	if err != nil {
		c.logger.Warnw("geo lookup failed", "ip", ip, "err", err)
		return GeoInfo{}
	}
	var parsed struct {
		CountryCode string `json:"country_code"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warnw("geo lookup returned invalid json", "ip", ip, "err", err)
		return GeoInfo{}
	}
	g := GeoInfo{Raw: body, CountryCode: parsed.CountryCode}
	if c.cache != nil {
		c.cache.Set(ctx, ip, g)
	}
	return g
}

// HolidayLookup lists public holidays of countryCode on date.
func (c *Client) HolidayLookup(ctx context.Context, countryCode string, date time.Time) HolidayList {
	if countryCode == "" {
		return nil
	}
	q := url.Values{
		"api_key": {c.apiKey},
		"country": {countryCode},
		"year":    {strconv.Itoa(date.Year())},
		"month":   {strconv.Itoa(int(date.Month()))},
		"day":     {strconv.Itoa(date.Day())},
	}
	body, err := c.get(ctx, c.holidayURL, q)
	if err != nil {
		c.logger.Warnw("holiday lookup failed", "country", countryCode, "err", err)
		return nil
	}
	if !json.Valid(body) {
		c.logger.Warnw("holiday lookup returned invalid json", "country", countryCode)
		return nil
	}
	return HolidayList(body)
}

// get performs a GET, retrying transport errors and 500/502/503/504.
func (c *Client) get(ctx context.Context, base string, q url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}
		switch {
		case retryable(resp.StatusCode):
			return retry.RetryableError(fmt.Errorf("upstream status %d", resp.StatusCode))
		case resp.StatusCode >= 300:
			return fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		body = b
		return nil
	})
	return body, err
}

func retryable(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
