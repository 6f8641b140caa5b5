package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
)

const (
	defaultBaseURL              = "https://maps.googleapis.com/maps/api"
	requestBodyReadLimit  int64 = 1024
	coordinatePrecision         = 7
)

var (
	errAPIKeyRequired = errors.New("google maps api key is required")

	// ErrNoAddress is returned when the geocoder has no result for a point.
	ErrNoAddress = errors.New("no address found for coordinates")
)

// Client wraps the Google Geocoding API used to backfill a human-readable
// address onto incoming panic requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Geocoding base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// Address is the normalized result of a reverse-geocode lookup.
type Address struct {
	FormattedAddress  string
	PlaceID           string
	AddressComponents []AddressComponent
}

// AddressComponent mirrors Google's address component payload.
type AddressComponent struct {
	LongName  string
	ShortName string
	Types     []string
}

// ReverseGeocode resolves the street address nearest to the provided point.
// Returns ErrNoAddress when Google has no result (open water, unmapped areas).
func (c *Client) ReverseGeocode(ctx context.Context, point geo.Point) (*Address, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if err := geo.ValidateCoordinates(point.Lat, point.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}

	latlng := formatCoord(point.Lat) + "," + formatCoord(point.Lng)
	query := url.Values{}
	query.Set("latlng", latlng)
	query.Set("key", c.apiKey)

	requestURL := fmt.Sprintf("%s/geocode/json?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build reverse geocode request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute reverse geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "reverse geocode request failed")
	}

	var apiResp struct {
		Status  string `json:"status"`
		Results []struct {
			PlaceID           string `json:"place_id"`
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName  string   `json:"long_name"`
				ShortName string   `json:"short_name"`
				Types     []string `json:"types"`
			} `json:"address_components"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode reverse geocode response")
	}

	switch apiResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoAddress
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("reverse geocode returned status %s", apiResp.Status))
	}
	if len(apiResp.Results) == 0 {
		return nil, ErrNoAddress
	}

	best := apiResp.Results[0]
	components := make([]AddressComponent, 0, len(best.AddressComponents))
	for _, comp := range best.AddressComponents {
		components = append(components, AddressComponent{
			LongName:  comp.LongName,
			ShortName: comp.ShortName,
			Types:     comp.Types,
		})
	}

	return &Address{
		FormattedAddress:  best.FormattedAddress,
		PlaceID:           best.PlaceID,
		AddressComponents: components,
	}, nil
}

func formatCoord(value float64) string {
	return strconv.FormatFloat(value, 'f', coordinatePrecision, 64)
}
