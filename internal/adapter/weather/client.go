package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/couchcryptid/flood-risk-monitor/internal/observability"
	"github.com/sony/gobreaker/v2"
)

// DefaultBaseURL is the current-conditions endpoint of the weather provider.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Provider API keys are 32 alphanumeric characters.
const apiKeyLength = 32

// forecastScale extrapolates the provider's 3-hour accumulation to 48 hours.
const forecastScale = 48.0 / 3.0

// ErrInvalidAPIKey is returned when the configured credential is missing or malformed.
var ErrInvalidAPIKey = errors.New("invalid weather API key")

// ValidateAPIKey checks the credential shape. It is a structural check only;
// a well-formed key can still be rejected by the provider.
func ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: not configured", ErrInvalidAPIKey)
	}
	if len(key) != apiKeyLength {
		return fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidAPIKey, apiKeyLength, len(key))
	}
	for _, r := range key {
		isAlnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isAlnum {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidAPIKey, r)
		}
	}
	return nil
}

// Client implements monitor.WeatherFetcher against the provider's
// current-conditions API.
type Client struct {
	apiKey     string
	keyErr     error
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[domain.WeatherSample]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a weather client. The credential is validated once here;
// Available reports the result.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		keyErr:     ValidateAPIKey(apiKey),
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker:    newBreaker(),
		metrics:    metrics,
		logger:     logger,
	}
}

// newBreaker trips after five consecutive failed fetches and probes again
// after 30 seconds.
func newBreaker() *gobreaker.CircuitBreaker[domain.WeatherSample] {
	return gobreaker.NewCircuitBreaker[domain.WeatherSample](gobreaker.Settings{
		Name:        "weather-provider",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Available returns nil when the client holds a structurally valid credential.
func (c *Client) Available() error {
	return c.keyErr
}

// FetchWeather returns the current weather at the coordinate. Every failure is
// reported as a *domain.NoDataError.
func (c *Client) FetchWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSample, error) {
	if c.keyErr != nil {
		c.metrics.WeatherRequests.WithLabelValues("unavailable").Inc()
		return domain.WeatherSample{}, domain.NoData("credential unavailable", c.keyErr)
	}

	start := time.Now()
	sample, err := c.breaker.Execute(func() (domain.WeatherSample, error) {
		return c.doRequest(ctx, coord)
	})
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		var nd *domain.NoDataError
		if errors.As(err, &nd) {
			return domain.WeatherSample{}, nd
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.WeatherSample{}, domain.NoData("circuit open", err)
		}
		return domain.WeatherSample{}, domain.NoData("request failed", err)
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return sample, nil
}

func (c *Client) doRequest(ctx context.Context, coord domain.Coordinate) (domain.WeatherSample, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(coord.Lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(coord.Lon, 'f', 6, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.WeatherSample{}, domain.NoData("create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherSample{}, domain.NoData("transport", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherSample{}, domain.NoData(
			fmt.Sprintf("status %d", resp.StatusCode),
			fmt.Errorf("provider response: %s", body),
		)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherSample{}, domain.NoData("decode response", err)
	}
	if payload.Main == nil {
		return domain.WeatherSample{}, domain.NoData("payload missing main block", nil)
	}

	return payload.toSample(), nil
}

// toSample normalizes the provider payload: wind m/s to km/h, the 3-hour
// rain accumulation extrapolated to a 48-hour forecast, humidity defaulted.
func (r response) toSample() domain.WeatherSample {
	sample := domain.WeatherSample{
		RainfallMMPerHour: r.Rain["1h"],
		WindSpeedKMH:      r.Wind.Speed * 3.6,
		TemperatureC:      r.Main.Temp,
		HumidityPct:       domain.DefaultHumidityPct,
		ObservedAt:        domain.Now(),
	}
	if threeHour, ok := r.Rain["3h"]; ok {
		sample.ForecastRainMM = threeHour * forecastScale
	}
	if r.Main.Humidity != nil {
		sample.HumidityPct = *r.Main.Humidity
	}
	if r.Dt > 0 {
		sample.ObservedAt = time.Unix(r.Dt, 0).UTC()
	}
	return sample
}

// Provider API response types.

type response struct {
	Main *mainBlock         `json:"main"`
	Wind windBlock          `json:"wind"`
	Rain map[string]float64 `json:"rain"`
	Dt   int64              `json:"dt"`
}

type mainBlock struct {
	Temp     float64  `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type windBlock struct {
	Speed float64 `json:"speed"` // m/s with units=metric
}
