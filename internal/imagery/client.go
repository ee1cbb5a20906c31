package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/properties"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	logTag      = "imagery: "
	processPath = "/api/v1/process"
	catalogPath = "/api/v1/catalog/1.0.0/search"
	crsEPSG4326 = "http://www.opengis.net/def/crs/EPSG/0/4326"
	// MaxPixels is recorded on every export request.
	MaxPixels = 1e13
)

// ProcessRequest is one rendered export: a band of one satellite over a
// region and date range.
type ProcessRequest struct {
	Satellite Satellite
	Band      string
	Reducer   string
	Orbit     string
	Product   Product
	Region    orb.Polygon
	Range     DateRange
}

// Client talks to the Copernicus Sentinel Hub process and catalogue APIs.
// Credentials are tried in order until one succeeds.
type Client struct {
	apiURL     string
	creds      []clientcredentials.Config
	retries    int
	retryDelay time.Duration
}

func NewClient(cfg properties.Copernicus) (*Client, error) {
	if len(cfg.ClientIDs) == 0 || len(cfg.ClientSecrets) == 0 || cfg.TokenURL == "" {
		return nil, ErrMissingCredential
	}
	if len(cfg.ClientIDs) != len(cfg.ClientSecrets) {
		return nil, ErrCredentialCount
	}
	c := &Client{
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
	if c.retries < 1 {
		c.retries = 1
	}
	for i, id := range cfg.ClientIDs {
		c.creds = append(c.creds, clientcredentials.Config{
			ClientID:     id,
			ClientSecret: cfg.ClientSecrets[i],
			TokenURL:     cfg.TokenURL,
		})
	}
	return c, nil
}

// Process renders req and returns the GeoTIFF bytes.
func (c *Client) Process(ctx context.Context, req ProcessRequest) ([]byte, error) {
	payload, err := c.processPayload(req)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, processPath, payload)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}
	return body, nil
}

// Count returns how many scenes of the satellite intersect region within r.
// Radar scenes only count when they carry both VV and VH.
func (c *Client) Count(ctx context.Context, sat Satellite, orbit string, region orb.Polygon, r DateRange) (int, error) {
	from, to, err := r.Interval()
	if err != nil {
		return 0, err
	}
	b := region.Bound()
	search := map[string]interface{}{
		"collections": []string{sat.ProcessType},
		"bbox":        []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()},
		"datetime":    from.Format(time.RFC3339) + "/" + to.Format(time.RFC3339),
		"limit":       100,
	}
	if sat.Radar && orbit != "" {
		search["filter"] = fmt.Sprintf("sat:orbit_state='%s' and sar:instrument_mode='IW'", strings.ToLower(orbit))
		search["filter-lang"] = "cql2-text"
	}
	payload, err := json.Marshal(search)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal search payload: %w", err)
	}

	body, err := c.post(ctx, catalogPath, payload)
	if err != nil {
		return 0, err
	}
	var result struct {
		Features []struct {
			Properties struct {
				Polarizations []string `json:"sar:polarizations"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse catalogue response: %w", err)
	}
	if !sat.Radar {
		return len(result.Features), nil
	}
	n := 0
	for _, f := range result.Features {
		if HasVVVH(f.Properties.Polarizations) {
			n++
		}
	}
	if n < len(result.Features) {
		log.Debug(logTag+"dropped single polarisation scenes", zap.Int("scenes", len(result.Features)), zap.Int("kept", n))
	}
	return n, nil
}

func (c *Client) processPayload(req ProcessRequest) ([]byte, error) {
	script, err := Evalscript(req.Satellite, req.Band, req.Reducer, req.Product)
	if err != nil {
		return nil, err
	}
	from, to, err := req.Range.Interval()
	if err != nil {
		return nil, err
	}
	width, height := PixelSize(req.Region.Bound(), req.Satellite.Scale)

	dataFilter := map[string]interface{}{
		"timeRange": map[string]string{
			"from": from.Format(time.RFC3339),
			"to":   to.Format(time.RFC3339),
		},
	}
	if req.Satellite.Radar {
		dataFilter["acquisitionMode"] = "IW"
		dataFilter["polarization"] = "DV"
		dataFilter["orbitDirection"] = req.Orbit
		dataFilter["mosaickingOrder"] = "leastRecent"
	} else if req.Product == Raw {
		dataFilter["mosaickingOrder"] = "leastCC"
	}

	payload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry":   geojson.NewGeometry(req.Region),
				"properties": map[string]string{"crs": crsEPSG4326},
			},
			"data": []map[string]interface{}{
				{
					"type":       req.Satellite.ProcessType,
					"dataFilter": dataFilter,
				},
			},
		},
		"output": map[string]interface{}{
			"width":     width,
			"height":    height,
			"maxPixels": MaxPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format":     map[string]string{"type": "image/tiff"},
				},
			},
		},
		"evalscript": script,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return body, nil
}

// post sends body with each credential in turn, retrying every credential
// up to c.retries times. A 403 stops the retries for that credential.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := c.apiURL + path
	var lastErr error
	for _, cred := range c.creds {
		httpClient := cred.Client(ctx)

		for attempt := 1; attempt <= c.retries; attempt++ {
			content, status, err := doPost(ctx, httpClient, url, body)
			if err == nil && status == http.StatusOK {
				return content, nil
			}
			if err == nil {
				if status == http.StatusForbidden || strings.Contains(string(content), "403") {
					lastErr = ErrUnauthorized
					break
				}
				err = fmt.Errorf("status %d: %s", status, truncate(string(content), 300))
			}
			lastErr = err
			log.Warn(logTag+"request attempt failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))

			if attempt == c.retries {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to request %s after %d attempts: %w", path, c.retries, lastErr)
}

func doPost(ctx context.Context, client *http.Client, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return content, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
