// Package itunes implements the catalog port against the iTunes Search API.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

// idPrefix namespaces iTunes identifiers in our own data so catalog sources
// can coexist.
const idPrefix = "i:"

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 200
)

// Client calls the iTunes Search API over HTTP.
type Client struct {
	baseURL    string
	country    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a catalog client. baseURL is the API root without a
// trailing slash, e.g. "https://itunes.apple.com".
func NewClient(baseURL, country string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		country:    country,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Named("iTunesClient"),
	}
}

// lookupResult mirrors the wire shape of one entry in an iTunes response.
// Fields arrive with inconsistent presence across entity types, so parsing
// is tolerant and entries missing essentials are skipped.
type lookupResult struct {
	WrapperType    string `json:"wrapperType"`
	CollectionID   int64  `json:"collectionId"`
	ArtistID       int64  `json:"artistId"`
	CollectionName string `json:"collectionName"`
	ArtistName     string `json:"artistName"`
	ArtworkURL100  string `json:"artworkUrl100"`
	CollectionType string `json:"collectionType"`
	Explicitness   string `json:"collectionExplicitness"`
	Genre          string `json:"primaryGenreName"`
	ReleaseDate    string `json:"releaseDate"`
	TrackCount     int    `json:"trackCount"`
}

type apiResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

// Lookup resolves a namespaced release ID to its catalog metadata.
func (c *Client) Lookup(ctx context.Context, releaseID string) (*domain.Release, error) {
	numericID := strings.TrimPrefix(releaseID, idPrefix)
	if numericID == "" || strings.Contains(numericID, ":") {
		return nil, fmt.Errorf("%w: malformed release id %q", domain.ErrInvalidInput, releaseID)
	}

	query := url.Values{}
	query.Set("id", numericID)
	query.Set("entity", "album")
	query.Set("limit", "1")

	resp, err := c.get(ctx, "/lookup", query)
	if err != nil {
		return nil, err
	}

	for _, result := range resp.Results {
		release, ok := toDomainRelease(result)
		if !ok {
			c.logger.Warn("Skipping malformed catalog lookup result", zap.String("release_id", releaseID))
			continue
		}
		return release, nil
	}

	c.logger.Warn("Release not found in catalog", zap.String("release_id", releaseID))
	return nil, domain.ErrNotFound
}

// Search finds albums matching term. Results that do not parse cleanly are
// dropped rather than failing the whole response.
func (c *Client) Search(ctx context.Context, term string, params domain.SearchParams) ([]domain.Release, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := url.Values{}
	query.Set("term", term)
	query.Set("media", "music")
	query.Set("entity", "album")
	query.Set("limit", strconv.Itoa(limit))
	if c.country != "" {
		query.Set("country", c.country)
	}
	if params.Explicit {
		query.Set("explicit", "Yes")
	} else {
		query.Set("explicit", "No")
	}

	resp, err := c.get(ctx, "/search", query)
	if err != nil {
		return nil, err
	}

	releases := make([]domain.Release, 0, len(resp.Results))
	for _, result := range resp.Results {
		release, ok := toDomainRelease(result)
		if !ok {
			continue
		}
		releases = append(releases, *release)
	}
	return releases, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*apiResponse, error) {
	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building catalog request: %v", domain.ErrCatalogUnavailable, err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Catalog request failed", zap.Error(err), zap.String("path", path))
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if httpResp.StatusCode != http.StatusOK {
		c.logger.Error("Catalog returned unexpected status",
			zap.Int("status", httpResp.StatusCode),
			zap.String("path", path))
		return nil, fmt.Errorf("%w: catalog returned status %d", domain.ErrCatalogUnavailable, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		c.logger.Error("Failed to decode catalog response", zap.Error(err), zap.String("path", path))
		return nil, fmt.Errorf("%w: decoding catalog response: %v", domain.ErrCatalogUnavailable, err)
	}
	return &resp, nil
}

// toDomainRelease converts a raw result, re-applying the ID namespace. It
// reports false when fields required to render the release are absent.
func toDomainRelease(r lookupResult) (*domain.Release, bool) {
	if r.CollectionID == 0 || r.ArtistID == 0 || r.CollectionName == "" || r.ArtistName == "" {
		return nil, false
	}

	releaseDate, err := time.Parse(time.RFC3339, r.ReleaseDate)
	if err != nil {
		releaseDate = time.Time{}
	}

	return &domain.Release{
		CollectionID:   idPrefix + strconv.FormatInt(r.CollectionID, 10),
		ArtistID:       idPrefix + strconv.FormatInt(r.ArtistID, 10),
		CollectionName: r.CollectionName,
		ArtistName:     r.ArtistName,
		ArtworkURL:     r.ArtworkURL100,
		CollectionType: r.CollectionType,
		Explicitness:   r.Explicitness,
		Genre:          r.Genre,
		ReleaseDate:    releaseDate,
		TrackCount:     r.TrackCount,
	}, true
}
