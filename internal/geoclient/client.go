package geoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Client calls the external geo verification service that decides whether a
// check-in coordinate falls inside a session's allowed radius.
type Client struct {
	BaseURL string
	Skip    bool
	HTTP    *http.Client
}

// New creates a client. With skip enabled no service is called; distances are
// computed locally so dev environments work standalone.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Verification is the service's verdict for one check-in.
type Verification struct {
	WithinRadius   bool    `json:"within_radius"`
	DistanceMeters float64 `json:"distance_m"`
}

// Verify asks whether (lat, lon) lies within radiusMeters of the session
// origin. Skip mode falls back to a local haversine distance.
func (c *Client) Verify(ctx context.Context, originLat, originLon, lat, lon, radiusMeters float64) (*Verification, error) {
	if c.Skip {
		d := haversineMeters(originLat, originLon, lat, lon)
		return &Verification{WithinRadius: d <= radiusMeters, DistanceMeters: d}, nil
	}

	body, _ := json.Marshal(map[string]float64{
		"origin_latitude":  originLat,
		"origin_longitude": originLon,
		"latitude":         lat,
		"longitude":        lon,
		"radius_m":         radiusMeters,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geo service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out Verification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Health checks if the geo service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("geo service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("geo service unhealthy: %s", resp.Status)
	}
	return nil
}

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
