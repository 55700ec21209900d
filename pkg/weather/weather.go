// Package weather looks up a location and its forecast on Open-Meteo.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout      = 5 * time.Second
)

// ErrLocationNotFound is returned when geocoding yields no result.
var ErrLocationNotFound = errors.New("weather: location not found")

// Forecast is the daily weather attached to an event.
type Forecast struct {
	Location    string  `json:"location" dynamodbav:"location"`
	Latitude    float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude   float64 `json:"longitude" dynamodbav:"longitude"`
	Date        string  `json:"date" dynamodbav:"date"`
	TempMaxC    float64 `json:"tempMax" dynamodbav:"tempMax"`
	TempMinC    float64 `json:"tempMin" dynamodbav:"tempMin"`
	WeatherCode int     `json:"weatherCode" dynamodbav:"weatherCode"`
	Description string  `json:"description" dynamodbav:"description"`
}

// Provider returns a forecast for a free-text location on a date.
type Provider interface {
	Forecast(ctx context.Context, location string, date time.Time) (*Forecast, error)
}

// Config holds client settings.
type Config struct {
	GeocodingURL string
	ForecastURL  string
	Timeout      time.Duration
}

// Client calls the Open-Meteo HTTP APIs.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a client, filling empty config fields with defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultGeocodingURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg, logger: logger}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Daily struct {
		Time        []string  `json:"time"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		WeatherCode []int     `json:"weathercode"`
	} `json:"daily"`
}

// Forecast geocodes location and fetches the daily forecast for date.
func (c *Client) Forecast(ctx context.Context, location string, date time.Time) (*Forecast, error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")
	var geo geocodeResponse
	if err := c.getJSON(ctx, c.cfg.GeocodingURL+"?"+q.Encode(), &geo); err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	if len(geo.Results) == 0 {
		return nil, ErrLocationNotFound
	}
	place := geo.Results[0]

	day := date.UTC().Format("2006-01-02")
	q = url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", place.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", place.Longitude))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	q.Set("timezone", "auto")
	q.Set("start_date", day)
	q.Set("end_date", day)
	var fc forecastResponse
	if err := c.getJSON(ctx, c.cfg.ForecastURL+"?"+q.Encode(), &fc); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	d := fc.Daily
	if len(d.Time) == 0 || len(d.TempMax) == 0 || len(d.TempMin) == 0 || len(d.WeatherCode) == 0 {
		return nil, fmt.Errorf("forecast: no data for %s", day)
	}

	name := place.Name
	if place.Country != "" {
		name += ", " + place.Country
	}
	c.logger.Debug("weather forecast fetched", zap.String("location", name), zap.String("date", day))
	return &Forecast{
		Location:    name,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		Date:        d.Time[0],
		TempMaxC:    d.TempMax[0],
		TempMinC:    d.TempMin[0],
		WeatherCode: d.WeatherCode[0],
		Description: Describe(d.WeatherCode[0]),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Describe maps a WMO weather code to a short description.
func Describe(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
