package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// ErrNotFound reports that the upstream has no record for the key.
var ErrNotFound = errors.New("not found")

// IndicatorSource refreshes threat intel for one indicator key.
type IndicatorSource interface {
	Refresh(ctx context.Context, indicator string) (*models.Indicator, error)
}

// AssetSource refreshes registry metadata for one tenant asset key.
type AssetSource interface {
	Refresh(ctx context.Context, tenantAssetID string) (*models.AssetContext, error)
}

// HTTPSourceConfig configures a remote enrichment source.
type HTTPSourceConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// HTTPIndicatorSource queries the intel service over HTTP JSON.
type HTTPIndicatorSource struct {
	base    string
	headers map[string]string
	client  *http.Client
}

// NewHTTPIndicatorSource creates an HTTP intel source.
func NewHTTPIndicatorSource(cfg HTTPSourceConfig) (*HTTPIndicatorSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("intel source URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPIndicatorSource{
		base:    strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Refresh fetches intel attributes for the indicator.
func (s *HTTPIndicatorSource) Refresh(ctx context.Context, indicator string) (*models.Indicator, error) {
	var out struct {
		Reputation  int      `json:"reputation"`
		Categories  []string `json:"categories"`
		Source      string   `json:"source"`
		Country     string   `json:"country"`
		CountryCode string   `json:"country_code"`
		ASN         string   `json:"asn"`
		Org         string   `json:"org"`
	}
	endpoint := s.base + "/v1/intel/" + url.PathEscape(indicator)
	if err := getJSON(ctx, s.client, endpoint, s.headers, &out); err != nil {
		return nil, err
	}
	return &models.Indicator{
		Indicator:   indicator,
		Reputation:  out.Reputation,
		Verdict:     models.ReputationVerdict(out.Reputation),
		Categories:  out.Categories,
		Source:      out.Source,
		Country:     out.Country,
		CountryCode: out.CountryCode,
		ASN:         out.ASN,
		Org:         out.Org,
	}, nil
}

// HTTPAssetSource queries the asset registry over HTTP JSON.
type HTTPAssetSource struct {
	base    string
	headers map[string]string
	client  *http.Client
}

// NewHTTPAssetSource creates an HTTP asset source.
func NewHTTPAssetSource(cfg HTTPSourceConfig) (*HTTPAssetSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("asset source URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPAssetSource{
		base:    strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Refresh fetches registry metadata for the asset key.
func (s *HTTPAssetSource) Refresh(ctx context.Context, tenantAssetID string) (*models.AssetContext, error) {
	var out struct {
		Criticality int      `json:"criticality"`
		Owner       string   `json:"owner"`
		Environment string   `json:"environment"`
		Tags        []string `json:"tags"`
	}
	endpoint := s.base + "/v1/assets/" + url.PathEscape(tenantAssetID)
	if err := getJSON(ctx, s.client, endpoint, s.headers, &out); err != nil {
		return nil, err
	}
	return &models.AssetContext{
		TenantAssetID: tenantAssetID,
		Criticality:   out.Criticality,
		Owner:         out.Owner,
		Environment:   out.Environment,
		Tags:          out.Tags,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("source request failed with status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode source response: %w", err)
	}
	return nil
}

// StaticFixtures is the YAML shape for file-backed sources used in dev
// and seed runs.
type StaticFixtures struct {
	Indicators map[string]StaticIndicator `yaml:"indicators"`
	Assets     map[string]StaticAsset     `yaml:"assets"`
}

// StaticIndicator is one fixture intel record.
type StaticIndicator struct {
	Reputation  int      `yaml:"reputation"`
	Categories  []string `yaml:"categories"`
	Source      string   `yaml:"source"`
	Country     string   `yaml:"country"`
	CountryCode string   `yaml:"country_code"`
	ASN         string   `yaml:"asn"`
	Org         string   `yaml:"org"`
}

// StaticAsset is one fixture registry record.
type StaticAsset struct {
	Criticality int      `yaml:"criticality"`
	Owner       string   `yaml:"owner"`
	Environment string   `yaml:"environment"`
	Tags        []string `yaml:"tags"`
}

// StaticSource serves fixture data from memory. Indicators miss with
// ErrNotFound; unknown assets fall back to type-derived defaults so the
// pipeline always has baseline asset context.
type StaticSource struct {
	fixtures StaticFixtures
}

// NewStaticSource creates a static source from in-memory fixtures.
func NewStaticSource(fixtures StaticFixtures) *StaticSource {
	return &StaticSource{fixtures: fixtures}
}

// LoadStaticSource reads fixture data from a YAML file.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures StaticFixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &StaticSource{fixtures: fixtures}, nil
}

// Refresh returns the fixture intel record for the indicator.
func (s *StaticSource) Refresh(ctx context.Context, indicator string) (*models.Indicator, error) {
	fix, ok := s.fixtures.Indicators[indicator]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.Indicator{
		Indicator:   indicator,
		Reputation:  fix.Reputation,
		Verdict:     models.ReputationVerdict(fix.Reputation),
		Categories:  fix.Categories,
		Source:      fix.Source,
		Country:     fix.Country,
		CountryCode: fix.CountryCode,
		ASN:         fix.ASN,
		Org:         fix.Org,
	}, nil
}

// RefreshAsset returns the fixture asset record, or a type-derived
// default when the registry has no entry.
func (s *StaticSource) RefreshAsset(ctx context.Context, tenantAssetID string) (*models.AssetContext, error) {
	if fix, ok := s.fixtures.Assets[tenantAssetID]; ok {
		return &models.AssetContext{
			TenantAssetID: tenantAssetID,
			Criticality:   fix.Criticality,
			Owner:         fix.Owner,
			Environment:   fix.Environment,
			Tags:          fix.Tags,
		}, nil
	}
	return &models.AssetContext{
		TenantAssetID: tenantAssetID,
		Criticality:   defaultCriticality(tenantAssetID),
		Environment:   "dev",
	}, nil
}

// defaultCriticality rates data stores above everything else, matching
// the registry's own baseline for unregistered assets.
func defaultCriticality(tenantAssetID string) int {
	parts := strings.Split(tenantAssetID, "/")
	if len(parts) < 2 {
		return 1
	}
	switch strings.ToLower(parts[1]) {
	case "database", "s3", "rds":
		return 3
	default:
		return 1
	}
}

// StaticAssetSource adapts a StaticSource to the AssetSource interface.
type StaticAssetSource struct {
	src *StaticSource
}

// NewStaticAssetSource wraps a static source for asset lookups.
func NewStaticAssetSource(src *StaticSource) *StaticAssetSource {
	return &StaticAssetSource{src: src}
}

// Refresh implements AssetSource.
func (s *StaticAssetSource) Refresh(ctx context.Context, tenantAssetID string) (*models.AssetContext, error) {
	return s.src.RefreshAsset(ctx, tenantAssetID)
}
