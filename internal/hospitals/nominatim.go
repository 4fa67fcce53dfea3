// Package hospitals finds hospitals near a free-text location using the
// Nominatim geocoding API.
package hospitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "thyroid_app"

	searchRadiusMeters = 5000
	searchLimit        = 10
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstream         = errors.New("hospital directory unavailable")
)

// Point is a WGS-84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is one Nominatim search hit.
type Place struct {
	DisplayName string
	Point       Point
}

// Client talks to a Nominatim instance.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, userAgent string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), userAgent: userAgent, http: httpClient}
}

// Geocode resolves a location to its best match.
func (c *Client) Geocode(ctx context.Context, location string) (Point, error) {
	places, err := c.search(ctx, url.Values{
		"q":      {location},
		"format": {"json"},
		"limit":  {"1"},
	})
	if err != nil {
		return Point{}, err
	}
	if len(places) == 0 {
		return Point{}, ErrLocationNotFound
	}
	return places[0].Point, nil
}

// Hospitals lists hospitals around p.
func (c *Client) Hospitals(ctx context.Context, p Point) ([]Place, error) {
	return c.search(ctx, url.Values{
		"q":      {"hospital"},
		"format": {"json"},
		"lat":    {formatCoord(p.Lat)},
		"lon":    {formatCoord(p.Lon)},
		"radius": {strconv.Itoa(searchRadiusMeters)},
		"limit":  {strconv.Itoa(searchLimit)},
	})
}

type searchHit struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (c *Client) search(ctx context.Context, params url.Values) ([]Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	places := make([]Place, 0, len(hits))
	for _, h := range hits {
		lat, errLat := strconv.ParseFloat(h.Lat, 64)
		lon, errLon := strconv.ParseFloat(h.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		places = append(places, Place{DisplayName: h.DisplayName, Point: Point{Lat: lat, Lon: lon}})
	}
	return places, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
