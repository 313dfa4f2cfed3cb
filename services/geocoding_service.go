package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// GeocodingService reverse-geocodes against a Nominatim-compatible endpoint.
type GeocodingService struct {
	baseURL    string
	httpClient *http.Client
}

func NewGeocodingService(baseURL string) *GeocodingService {
	return &GeocodingService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type reverseGeocodeResponse struct {
	DisplayName string `json:"display_name"`
}

func (gs *GeocodingService) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?%s", gs.baseURL, url.Values{
		"lat":    {fmt.Sprintf("%.6f", lat)},
		"lon":    {fmt.Sprintf("%.6f", lng)},
		"format": {"json"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "resqlink/1.0")

	resp, err := gs.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var decoded reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode returned no address")
	}

	logrus.WithFields(logrus.Fields{
		"lat": lat,
		"lng": lng,
	}).Debug("Reverse geocoded coordinates")
	return decoded.DisplayName, nil
}
