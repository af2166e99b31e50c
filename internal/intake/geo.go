package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/pkg/logging"
	"github.com/redis/go-redis/v9"
)

const (
	defaultGeoTimeout  = 2 * time.Second
	defaultGeoCacheTTL = 24 * time.Hour
	geoCachePrefix     = "geo:ip:"
)

// GeoLocator turns a client IP into a display location. It never fails: any
// problem degrades to leads.UnknownLocation.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) string
}

// UnknownLocator is used when no geolocation service is configured.
type UnknownLocator struct{}

func (UnknownLocator) Locate(context.Context, string) string { return leads.UnknownLocation }

// GeoConfig configures HTTPGeoLocator. URL may contain an {ip} placeholder,
// otherwise the IP is appended as a path segment.
type GeoConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// HTTPGeoLocator queries an ip-api style JSON service and caches hits in redis.
type HTTPGeoLocator struct {
	cfg        GeoConfig
	httpClient *http.Client
	cache      *redis.Client
	logger     *logging.Logger
}

// NewHTTPGeoLocator creates a locator. cache may be nil.
func NewHTTPGeoLocator(cfg GeoConfig, cache *redis.Client, logger *logging.Logger) *HTTPGeoLocator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGeoTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultGeoCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPGeoLocator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		logger:     logger,
	}
}

// geoResponse accepts the field names of the common free providers.
type geoResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	RegionName  string `json:"regionName"`
	Country     string `json:"country"`
	CountryName string `json:"country_name"`
	Status      string `json:"status"`
	Error       bool   `json:"error"`
}

func (g geoResponse) display() string {
	region := g.RegionName
	if region == "" {
		region = g.Region
	}
	country := g.CountryName
	if country == "" {
		country = g.Country
	}
	var parts []string
	for _, p := range []string{g.City, region, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (l *HTTPGeoLocator) Locate(ctx context.Context, ip string) string {
	if !publicIP(ip) || l.cfg.URL == "" {
		return leads.UnknownLocation
	}
	if cached := l.cached(ctx, ip); cached != "" {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	location, err := l.lookup(ctx, ip)
	if err != nil {
		l.logger.Warn("geolocation lookup failed", "error", err)
		return leads.UnknownLocation
	}
	if location == "" {
		return leads.UnknownLocation
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, geoCachePrefix+ip, location, l.cfg.CacheTTL).Err(); err != nil {
			l.logger.Debug("geolocation cache write failed", "error", err)
		}
	}
	return location
}

func (l *HTTPGeoLocator) cached(ctx context.Context, ip string) string {
	if l.cache == nil {
		return ""
	}
	val, err := l.cache.Get(ctx, geoCachePrefix+ip).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Debug("geolocation cache read failed", "error", err)
		}
		return ""
	}
	return val
}

func (l *HTTPGeoLocator) lookup(ctx context.Context, ip string) (string, error) {
	endpoint := l.cfg.URL
	if strings.Contains(endpoint, "{ip}") {
		endpoint = strings.ReplaceAll(endpoint, "{ip}", ip)
	} else {
		endpoint = strings.TrimRight(endpoint, "/") + "/" + ip
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("intake: build geolocation request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("intake: geolocation request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("intake: geolocation status %d", resp.StatusCode)
	}
	var out geoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("intake: decode geolocation: %w", err)
	}
	if out.Error || strings.EqualFold(out.Status, "fail") {
		return "", nil
	}
	return out.display(), nil
}

// publicIP filters out addresses a lookup service cannot place.
func publicIP(raw string) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return false
	}
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast())
}

// ClientIP strips the port from a RemoteAddr; chi's RealIP middleware has
// already applied X-Forwarded-For.
func ClientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
