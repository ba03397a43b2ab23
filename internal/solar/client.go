package solar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Events holds a day's solar instants as returned by the provider:
// local wall-clock timestamps with no UTC offset attached.
type Events struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// EventSource fetches sunrise/sunset data for a coordinate and date.
// A nil result with nil error means the provider had no data.
type EventSource interface {
	Events(ctx context.Context, lat, lng float64, date time.Time) (*Events, error)
}

// Client is an HTTP client for the solar events provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a solar provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UseRedisCache configures optional Redis caching for event lookups.
// Solar data for a past-or-fixed date never changes, so a long TTL is safe.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type eventsResponse struct {
	Status  string `json:"status"`
	Results Events `json:"results"`
}

// Events fetches the day's sunrise and sunset for the coordinates.
// Any provider failure yields (nil, nil); the resolver treats that as
// "cannot auto-place", not as an error.
func (c *Client) Events(ctx context.Context, lat, lng float64, date time.Time) (*Events, error) {
	endpoint := fmt.Sprintf("%s/json?lat=%f&lng=%f&date=%s",
		c.baseURL, lat, lng, date.Format("2006-01-02"))
	cacheKey := fmt.Sprintf("solar:%f:%f:%s", lat, lng, date.Format("2006-01-02"))

	var resp eventsResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			c.logger.Debug().Err(err).
				Float64("lat", lat).Float64("lng", lng).
				Msg("solar events lookup failed")
			return nil, nil
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if resp.Status != "" && resp.Status != "OK" {
		return nil, nil
	}
	if resp.Results.Sunrise == "" && resp.Results.Sunset == "" {
		return nil, nil
	}
	return &resp.Results, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
