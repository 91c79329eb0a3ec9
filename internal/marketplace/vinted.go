package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"thriftwatch/internal/misc"
	"thriftwatch/internal/model"
)

var ErrVinted = errors.New("Vinted error")

const vintedBaseURL = "https://www.vinted.com/api/v2"

type vintedAdapter struct {
	http    *http.Client
	logger  logger
	limiter *rateLimiter
	apiKey  string
	baseURL string
}

func newVintedAdapter(httpClient *http.Client, apiKey string, log logger) *vintedAdapter {
	return &vintedAdapter{
		http:    httpClient,
		logger:  log,
		limiter: newRateLimiter(1500 * time.Millisecond),
		apiKey:  apiKey,
		baseURL: vintedBaseURL,
	}
}

func (a *vintedAdapter) Name() string { return Vinted }

type vintedSearchResponse struct {
	Items []vintedItem `json:"items"`
}

type vintedItem struct {
	ID     int64       `json:"id"`
	Title  string      `json:"title"`
	Price  json.Number `json:"price"`
	URL    string      `json:"url"`
	Status string      `json:"status"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`
	CreatedAtTS string `json:"created_at_ts"`
	User        struct {
		Login        string  `json:"login"`
		CountryTitle string  `json:"country_title"`
		Feedback     float64 `json:"feedback_reputation"`
	} `json:"user"`
}

func (a *vintedAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Vinted rate limiter")
	}

	params := url.Values{}
	params.Set("search_text", q.Keywords)
	params.Set("per_page", "20")
	params.Set("order", vintedOrder(q.SortBy))
	if q.MinPrice != nil {
		params.Set("price_from", strconv.FormatFloat(*q.MinPrice, 'f', 2, 64))
	}
	if q.MaxPrice != nil {
		params.Set("price_to", strconv.FormatFloat(*q.MaxPrice, 'f', 2, 64))
	}

	apiURL := a.baseURL + "/catalog/items?" + params.Encode()
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrVinted, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("Search: Error closing Vinted response body, apiURL: %s, err: %v", apiURL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Vinted search response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrVinted, "error searching Vinted, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}

	var searchResp vintedSearchResponse
	if err = json.Unmarshal(body, &searchResp); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling Vinted search response, body:\n%s", misc.BytesLimit(body, 500))
	}

	now := time.Now()
	ls := make([]model.Listing, 0, len(searchResp.Items))
	for _, it := range searchResp.Items {
		l := it.toListing(now)
		if l.ExternalID == "" || l.Title == "" {
			a.logger.Warnf("Search: Skipping Vinted item with missing fields: %#v", it)
			continue
		}
		ls = append(ls, l)
	}
	return ls, nil
}

func (it vintedItem) toListing(now time.Time) model.Listing {
	var externalID string
	if it.ID != 0 {
		externalID = strconv.FormatInt(it.ID, 10)
	}
	price, _ := it.Price.Float64()
	postedAt, err := time.Parse(time.RFC3339, it.CreatedAtTS)
	if err != nil {
		postedAt = now
	}
	var imageURL string
	if len(it.Photos) > 0 {
		imageURL = it.Photos[0].URL
	}
	return model.Listing{
		ExternalID:  externalID,
		Title:       it.Title,
		Price:       price,
		ImageURL:    imageURL,
		URL:         it.URL,
		Marketplace: Vinted,
		PostedAt:    postedAt,
		Condition:   it.Status,
		Location:    it.User.CountryTitle,
		Seller: model.Seller{
			Name:   it.User.Login,
			Rating: it.User.Feedback,
		},
	}
}

func (a *vintedAdapter) ItemDetails(ctx context.Context, externalID string) (json.RawMessage, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Vinted rate limiter")
	}
	apiURL := a.baseURL + "/items/" + url.PathEscape(externalID)
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrVinted, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Vinted item response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrVinted, "error getting Vinted item, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}
	return body, nil
}

func (a *vintedAdapter) HealthCheck(ctx context.Context) bool {
	_, err := a.Search(ctx, model.SearchQuery{Keywords: "test"})
	if err != nil {
		a.logger.Debugf("HealthCheck: Vinted unreachable, err: %v", err)
		return false
	}
	return true
}

func vintedOrder(sortBy string) string {
	switch sortBy {
	case model.SortPriceLow:
		return "price_low_to_high"
	case model.SortPriceHigh:
		return "price_high_to_low"
	case model.SortRelevance:
		return "relevance"
	default:
		return "newest_first"
	}
}
