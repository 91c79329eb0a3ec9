package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"thriftwatch/internal/misc"
	"thriftwatch/internal/model"
)

var ErrCraigslist = errors.New("Craigslist error")

// Craigslist has no official API; searches go through a configured
// third-party scraper service.
type craigslistAdapter struct {
	http    *http.Client
	logger  logger
	limiter *rateLimiter
	baseURL string
	apiKey  string
}

func newCraigslistAdapter(httpClient *http.Client, baseURL string, apiKey string, log logger) *craigslistAdapter {
	return &craigslistAdapter{
		http:    httpClient,
		logger:  log,
		limiter: newRateLimiter(2 * time.Second),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (a *craigslistAdapter) Name() string { return Craigslist }

type craigslistSearchResponse struct {
	Results []craigslistResult `json:"results"`
}

type craigslistResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	ImageURL string `json:"imageUrl"`
	URL      string `json:"url"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

func (a *craigslistAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error) {
	if a.baseURL == "" {
		return nil, errors.Wrap(ErrCraigslist, "scraper service URL is not configured")
	}
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Craigslist rate limiter")
	}

	params := url.Values{}
	params.Set("query", q.Keywords)
	if q.MinPrice != nil {
		params.Set("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', 2, 64))
	}
	if q.MaxPrice != nil {
		params.Set("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', 2, 64))
	}
	location := q.Location
	if location == "" {
		location = "sfbay"
	}
	params.Set("location", location)

	apiURL := a.baseURL + "/search?" + params.Encode()
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrCraigslist, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("Search: Error closing Craigslist response body, apiURL: %s, err: %v", apiURL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Craigslist search response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrCraigslist, "error searching Craigslist, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}

	var searchResp craigslistSearchResponse
	if err = json.Unmarshal(body, &searchResp); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling Craigslist search response, body:\n%s", misc.BytesLimit(body, 500))
	}

	now := time.Now()
	ls := make([]model.Listing, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		l := r.toListing(now)
		if l.ExternalID == "" || l.Title == "" {
			a.logger.Warnf("Search: Skipping Craigslist result with missing fields: %#v", r)
			continue
		}
		ls = append(ls, l)
	}
	return ls, nil
}

func (r craigslistResult) toListing(now time.Time) model.Listing {
	postedAt, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		postedAt = now
	}
	return model.Listing{
		ExternalID:  r.ID,
		Title:       r.Title,
		Price:       parseCraigslistPrice(r.Price),
		ImageURL:    r.ImageURL,
		URL:         r.URL,
		Marketplace: Craigslist,
		PostedAt:    postedAt,
		Location:    r.Location,
	}
}

// parseCraigslistPrice strips currency symbols and thousands separators from
// strings like "$1,234". An unparsable or missing price becomes 0.
func parseCraigslistPrice(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 {
		return 0
	}
	return p
}

func (a *craigslistAdapter) ItemDetails(ctx context.Context, externalID string) (json.RawMessage, error) {
	if a.baseURL == "" {
		return nil, errors.Wrap(ErrCraigslist, "scraper service URL is not configured")
	}
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Craigslist rate limiter")
	}
	apiURL := a.baseURL + "/item/" + url.PathEscape(externalID)
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrCraigslist, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Craigslist item response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrCraigslist, "error getting Craigslist item, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}
	return body, nil
}

func (a *craigslistAdapter) HealthCheck(ctx context.Context) bool {
	if a.baseURL == "" {
		return false
	}
	_, err := a.Search(ctx, model.SearchQuery{Keywords: "test"})
	if err != nil {
		a.logger.Debugf("HealthCheck: Craigslist scraper unreachable, err: %v", err)
		return false
	}
	return true
}
