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

var ErrDepop = errors.New("Depop error")

const depopBaseURL = "https://webapi.depop.com/api/v2"

type depopAdapter struct {
	http    *http.Client
	logger  logger
	limiter *rateLimiter
	baseURL string
}

func newDepopAdapter(httpClient *http.Client, log logger) *depopAdapter {
	return &depopAdapter{
		http:    httpClient,
		logger:  log,
		limiter: newRateLimiter(1 * time.Second),
		baseURL: depopBaseURL,
	}
}

func (a *depopAdapter) Name() string { return Depop }

type depopSearchResponse struct {
	Products []depopProduct `json:"products"`
}

type depopProduct struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price struct {
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
	} `json:"price"`
	Images    []string `json:"images"`
	URL       string   `json:"url"`
	Condition string   `json:"condition"`
	Location  string   `json:"location"`
	PostedAt  string   `json:"posted_at"`
	Seller    struct {
		Username string  `json:"username"`
		Rating   float64 `json:"rating"`
	} `json:"seller"`
}

func (a *depopAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Depop rate limiter")
	}

	params := url.Values{}
	params.Set("q", q.Keywords)
	params.Set("limit", "20")
	params.Set("sort", depopSort(q.SortBy))
	if q.MinPrice != nil {
		params.Set("priceMin", strconv.FormatFloat(*q.MinPrice, 'f', 2, 64))
	}
	if q.MaxPrice != nil {
		params.Set("priceMax", strconv.FormatFloat(*q.MaxPrice, 'f', 2, 64))
	}
	for _, c := range q.Conditions {
		params.Add("condition", depopCondition(c))
	}
	if q.Location != "" {
		params.Set("countryCode", countryCode(q.Location))
	}

	apiURL := a.baseURL + "/search/products?" + params.Encode()
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrDepop, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("Search: Error closing Depop response body, apiURL: %s, err: %v", apiURL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Depop search response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrDepop, "error searching Depop, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}

	var searchResp depopSearchResponse
	if err = json.Unmarshal(body, &searchResp); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling Depop search response, body:\n%s", misc.BytesLimit(body, 500))
	}

	now := time.Now()
	ls := make([]model.Listing, 0, len(searchResp.Products))
	for _, p := range searchResp.Products {
		l := p.toListing(now)
		if l.ExternalID == "" || l.Title == "" {
			a.logger.Warnf("Search: Skipping Depop product with missing fields: %#v", p)
			continue
		}
		ls = append(ls, l)
	}
	return ls, nil
}

func (p depopProduct) toListing(now time.Time) model.Listing {
	postedAt, err := time.Parse(time.RFC3339, p.PostedAt)
	if err != nil {
		postedAt = now
	}
	var imageURL string
	if len(p.Images) > 0 {
		imageURL = p.Images[0]
	}
	listingURL := p.URL
	if listingURL == "" {
		listingURL = "https://www.depop.com/products/" + p.ID
	}
	return model.Listing{
		ExternalID:  p.ID,
		Title:       p.Title,
		Price:       p.Price.Amount,
		ImageURL:    imageURL,
		URL:         listingURL,
		Marketplace: Depop,
		PostedAt:    postedAt,
		Condition:   p.Condition,
		Location:    p.Location,
		Seller: model.Seller{
			Name:   p.Seller.Username,
			Rating: p.Seller.Rating,
		},
	}
}

func (a *depopAdapter) ItemDetails(ctx context.Context, externalID string) (json.RawMessage, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Depop rate limiter")
	}
	apiURL := a.baseURL + "/products/" + url.PathEscape(externalID)
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrDepop, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Depop item response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrDepop, "error getting Depop item, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}
	return body, nil
}

func (a *depopAdapter) HealthCheck(ctx context.Context) bool {
	_, err := a.Search(ctx, model.SearchQuery{Keywords: "test"})
	if err != nil {
		a.logger.Debugf("HealthCheck: Depop unreachable, err: %v", err)
		return false
	}
	return true
}

func depopSort(sortBy string) string {
	switch sortBy {
	case model.SortPriceLow:
		return "price_asc"
	case model.SortPriceHigh:
		return "price_desc"
	case model.SortRelevance:
		return "relevance"
	default:
		return "time"
	}
}

func depopCondition(condition string) string {
	switch condition {
	case "new":
		return "new_with_tags"
	case "like_new":
		return "new_no_tags"
	case "good":
		return "good"
	case "fair", "poor":
		return "well_worn"
	default:
		return condition
	}
}

var countryCodes = map[string]string{
	"uk":             "GB",
	"united kingdom": "GB",
	"us":             "US",
	"usa":            "US",
	"united states":  "US",
	"canada":         "CA",
	"australia":      "AU",
	"france":         "FR",
	"germany":        "DE",
	"italy":          "IT",
	"spain":          "ES",
}

func countryCode(location string) string {
	if code, ok := countryCodes[strings.ToLower(location)]; ok {
		return code
	}
	return "US"
}
