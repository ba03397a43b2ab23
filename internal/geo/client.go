package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Coordinates is a geocoded point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves free-text addresses to coordinates.
// A nil result with nil error means the address could not be resolved;
// callers treat that as a soft failure.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Router computes drive durations between two named places.
// The ok result is false when no route is available.
type Router interface {
	RouteDuration(ctx context.Context, origin, destination string) (time.Duration, bool, error)
}

// Client is an HTTP client for the geocoding and routing providers.
type Client struct {
	geocodeBaseURL string
	routingBaseURL string
	apiKey         string
	httpClient     *http.Client
	logger         *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a provider client with the given base URLs and API key.
func NewClient(geocodeBaseURL, routingBaseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		geocodeBaseURL: geocodeBaseURL,
		routingBaseURL: routingBaseURL,
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// UseRedisCache configures optional Redis caching for provider lookups.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type geocodeResponse struct {
	Results []struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"results"`
}

// Geocode resolves an address to coordinates.
// Provider errors and empty result sets both yield (nil, nil): the engine
// falls back rather than failing a booking over a lookup.
func (c *Client) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	endpoint := fmt.Sprintf("%s/geocode?q=%s", c.geocodeBaseURL, url.QueryEscape(address))
	cacheKey := "geocode:" + address

	var resp geocodeResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			c.logger.Debug().Err(err).Str("address", address).Msg("geocode lookup failed")
			return nil, nil
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &Coordinates{Lat: resp.Results[0].Lat, Lng: resp.Results[0].Lng}, nil
}

type routeResponse struct {
	Routes []struct {
		DurationSeconds int64 `json:"duration_seconds"`
	} `json:"routes"`
}

// RouteDuration returns the drive time between two named places.
// ok is false when the provider has no route or the lookup fails.
func (c *Client) RouteDuration(ctx context.Context, origin, destination string) (time.Duration, bool, error) {
	endpoint := fmt.Sprintf("%s/route?from=%s&to=%s",
		c.routingBaseURL, url.QueryEscape(origin), url.QueryEscape(destination))
	cacheKey := fmt.Sprintf("route:%s|%s", origin, destination)

	var resp routeResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			c.logger.Debug().Err(err).
				Str("origin", origin).Str("destination", destination).
				Msg("route lookup failed")
			return 0, false, nil
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if len(resp.Routes) == 0 {
		return 0, false, nil
	}
	return time.Duration(resp.Routes[0].DurationSeconds) * time.Second, true, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
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
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}
