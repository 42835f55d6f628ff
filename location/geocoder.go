package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/linesmerrill/disaster-intake-api/logging"
	"github.com/linesmerrill/disaster-intake-api/models"
)

// HTTPGeocoder calls a BigDataCloud style reverse geocoding endpoint
type HTTPGeocoder struct {
	BaseURL string
	Client  *retryablehttp.Client
}

type reverseGeocodeResponse struct {
	PrincipalSubdivision string `json:"principalSubdivision"`
	Locality             string `json:"locality"`
	City                 string `json:"city"`
	LocalityInfo         struct {
		Informative []struct {
			Name string `json:"name"`
		} `json:"informative"`
	} `json:"localityInfo"`
}

// NewHTTPGeocoder returns a geocoder with a short timeout and two retries
func NewHTTPGeocoder(baseURL string) *HTTPGeocoder {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = logging.NewLeveled("geocoder")
	return &HTTPGeocoder{BaseURL: baseURL, Client: c}
}

// Reverse implements Geocoder
func (g *HTTPGeocoder) Reverse(ctx context.Context, lat, lng float64) (*models.LocationHint, error) {
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoder url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("localityLanguage", "en")
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	hint := &models.LocationHint{
		State:    orUnknown(body.PrincipalSubdivision),
		District: orUnknown(firstNonEmpty(body.Locality, body.City)),
		Address:  unknownDistrict,
	}
	if len(body.LocalityInfo.Informative) > 0 && body.LocalityInfo.Informative[0].Name != "" {
		hint.Address = body.LocalityInfo.Informative[0].Name
	}
	return hint, nil
}

func orUnknown(s string) string {
	if s == "" {
		return unknownDistrict
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
