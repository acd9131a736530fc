package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gostac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/burst2safe/pkg/geojson"
)

const (
	// DefaultSTACBaseURL is the CMR STAC catalog for the ASF provider.
	DefaultSTACBaseURL = "https://cmr.earthdata.nasa.gov/stac/ASF"
	// burstCollection is the STAC collection holding Sentinel-1 burst
	// products.
	burstCollection = "SENTINEL-1_BURSTS"

	stacPageSize = 250
)

// STACClient queries a STAC items endpoint for burst products. It is an
// alternative to the ASF param API backend for deployments already speaking
// STAC.
type STACClient struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSTACClient creates a STAC API client for the burst collection.
func NewSTACClient(baseURL string, timeout time.Duration) *STACClient {
	if baseURL == "" {
		baseURL = DefaultSTACBaseURL
	}
	return &STACClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: burstCollection,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *STACClient) WithLogger(logger *slog.Logger) *STACClient {
	c.logger = logger
	return c
}

// Name identifies the backend in logs and errors.
func (c *STACClient) Name() string { return "stac" }

// itemCollection is a STAC FeatureCollection page of items.
type itemCollection struct {
	Features []*gostac.Item `json:"features"`
	Links    []*gostac.Link `json:"links"`
}

// Search performs a burst search against the STAC items endpoint, following
// next links until the result set is exhausted.
func (c *STACClient) Search(ctx context.Context, params Params) ([]*Result, error) {
	pageURL, err := c.buildItemsURL(params)
	if err != nil {
		return nil, err
	}

	var results []*Result
	for pageURL != "" {
		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Features {
			result, err := itemToResult(item)
			if err != nil {
				return nil, fmt.Errorf("STAC item %s: %w", item.Id, err)
			}
			results = append(results, result)
		}
		pageURL = nextLink(page.Links)
	}

	c.logger.DebugContext(ctx, "STAC burst search completed",
		slog.Int("result_count", len(results)),
	)
	return filterResults(results, params), nil
}

func (c *STACClient) fetchPage(ctx context.Context, pageURL string) (*itemCollection, error) {
	c.logger.DebugContext(ctx, "fetching STAC items page",
		slog.String("url", pageURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", "burst2safe/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("STAC API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("STAC API returned status %d: %s", resp.StatusCode, string(body))
	}

	var page itemCollection
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode STAC response: %w", err)
	}
	return &page, nil
}

func (c *STACClient) buildItemsURL(params Params) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/collections/" + c.collection + "/items"

	values := url.Values{}
	values.Set("limit", fmt.Sprint(stacPageSize))
	if len(params.ProductList) > 0 {
		values.Set("ids", strings.Join(params.ProductList, ","))
	}
	if params.Start != nil || params.End != nil {
		values.Set("datetime", stacInterval(params.Start, params.End))
	}
	// Spatial and orbital filters beyond datetime are applied client-side;
	// the CMR STAC items endpoint only supports the core query params.
	base.RawQuery = values.Encode()
	return base.String(), nil
}

// filterResults applies the params the items endpoint cannot express.
func filterResults(results []*Result, params Params) []*Result {
	keep := results[:0:0]
	for _, r := range results {
		if params.AbsoluteOrbit > 0 && r.AbsoluteOrbit != params.AbsoluteOrbit {
			continue
		}
		if len(params.Polarization) > 0 && !containsFold(params.Polarization, r.Polarization) {
			continue
		}
		if params.BeamMode != "" && !strings.HasPrefix(r.Swath, params.BeamMode) {
			continue
		}
		if len(params.FullBurstIDs) > 0 && !containsFold(params.FullBurstIDs, r.FullBurstID) {
			continue
		}
		keep = append(keep, r)
	}
	return keep
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// itemToResult maps a STAC burst item onto a Result. Burst attributes ride
// in the item properties; the raster and metadata locations in the assets.
func itemToResult(item *gostac.Item) (*Result, error) {
	props := item.Properties

	dataHref := assetHref(item, "data")
	if dataHref == "" {
		return nil, fmt.Errorf("item has no data asset")
	}
	metadataHref := assetHref(item, "metadata")
	if metadataHref == "" {
		return nil, fmt.Errorf("item has no metadata asset")
	}

	fullBurstID := stringProp(props, "asf:fullBurstID")
	if fullBurstID == "" {
		return nil, fmt.Errorf("item has no asf:fullBurstID property")
	}

	pol := stringProp(props, "sar:polarizations")
	if pols, ok := props["sar:polarizations"].([]any); ok && len(pols) > 0 {
		pol, _ = pols[0].(string)
	}
	if pol == "" {
		return nil, fmt.Errorf("item has no polarization")
	}

	footprint, err := itemGeometry(item)
	if err != nil {
		return nil, err
	}

	return &Result{
		Granule:         item.Id,
		SLCGranule:      strings.TrimSuffix(pathBase(metadataHref), ".xml"),
		FullBurstID:     fullBurstID,
		RelativeBurstID: int64(intProp(props, "asf:relativeBurstID")),
		BurstIndex:      intProp(props, "asf:burstIndex"),
		Swath:           stringProp(props, "asf:subswath"),
		Polarization:    strings.ToUpper(pol),
		AbsoluteOrbit:   intProp(props, "sat:absolute_orbit"),
		FlightDirection: strings.ToUpper(stringProp(props, "sat:orbit_state")),
		DataURL:         dataHref,
		MetadataURL:     metadataHref,
		Footprint:       footprint,
	}, nil
}

func assetHref(item *gostac.Item, key string) string {
	if asset, ok := item.Assets[key]; ok && asset != nil {
		return asset.Href
	}
	return ""
}

func itemGeometry(item *gostac.Item) (*geojson.Geometry, error) {
	if item.Geometry == nil {
		return nil, nil
	}
	raw, err := json.Marshal(item.Geometry)
	if err != nil {
		return nil, fmt.Errorf("item geometry: %w", err)
	}
	var geom geojson.Geometry
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil, fmt.Errorf("item geometry: %w", err)
	}
	return &geom, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

func nextLink(links []*gostac.Link) string {
	for _, link := range links {
		if link != nil && link.Rel == "next" {
			return link.Href
		}
	}
	return ""
}

func stacInterval(start, end *time.Time) string {
	s, e := "..", ".."
	if start != nil {
		s = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		e = end.UTC().Format(time.RFC3339)
	}
	return s + "/" + e
}
