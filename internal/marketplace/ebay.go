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

var ErrEbay = errors.New("eBay error")

const (
	ebayFindingBaseURL  = "https://svcs.ebay.com/services/search/FindingService/v1"
	ebayShoppingBaseURL = "https://open.api.ebay.com/shopping"
)

type ebayAdapter struct {
	http            *http.Client
	logger          logger
	limiter         *rateLimiter
	appID           string
	findingBaseURL  string
	shoppingBaseURL string
}

func newEbayAdapter(httpClient *http.Client, appID string, log logger) *ebayAdapter {
	return &ebayAdapter{
		http:            httpClient,
		logger:          log,
		limiter:         newRateLimiter(1 * time.Second),
		appID:           appID,
		findingBaseURL:  ebayFindingBaseURL,
		shoppingBaseURL: ebayShoppingBaseURL,
	}
}

func (a *ebayAdapter) Name() string { return Ebay }

// The Finding API wraps every field in a one-element array; parse defensively
// and drop items that come back without the essentials.
type ebaySearchResponse struct {
	FindItemsByKeywordsResponse []struct {
		Ack          []string `json:"ack"`
		SearchResult []struct {
			Item []ebayItem `json:"item"`
		} `json:"searchResult"`
	} `json:"findItemsByKeywordsResponse"`
}

type ebayItem struct {
	ItemID        []string `json:"itemId"`
	Title         []string `json:"title"`
	GalleryURL    []string `json:"galleryURL"`
	ViewItemURL   []string `json:"viewItemURL"`
	Location      []string `json:"location"`
	SellingStatus []struct {
		CurrentPrice []struct {
			Value string `json:"__value__"`
		} `json:"currentPrice"`
	} `json:"sellingStatus"`
	ListingInfo []struct {
		StartTime []string `json:"startTime"`
	} `json:"listingInfo"`
	Condition []struct {
		ConditionDisplayName []string `json:"conditionDisplayName"`
	} `json:"condition"`
	SellerInfo []struct {
		SellerUserName          []string `json:"sellerUserName"`
		PositiveFeedbackPercent []string `json:"positiveFeedbackPercent"`
	} `json:"sellerInfo"`
}

func (a *ebayAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on eBay rate limiter")
	}

	params := url.Values{}
	params.Set("OPERATION-NAME", "findItemsByKeywords")
	params.Set("SERVICE-VERSION", "1.0.0")
	params.Set("SECURITY-APPNAME", a.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "true")
	params.Set("keywords", q.Keywords)
	params.Set("paginationInput.entriesPerPage", "20")
	params.Set("sortOrder", ebaySortOrder(q.SortBy))
	filterIdx := 0
	if q.MinPrice != nil {
		setEbayItemFilter(params, filterIdx, "MinPrice", strconv.FormatFloat(*q.MinPrice, 'f', 2, 64))
		filterIdx++
	}
	if q.MaxPrice != nil {
		setEbayItemFilter(params, filterIdx, "MaxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', 2, 64))
	}

	apiURL := a.findingBaseURL + "?" + params.Encode()
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrEbay, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.Errorf("Search: Error closing eBay response body, apiURL: %s, err: %v", apiURL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 500*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading eBay search response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrEbay, "error searching eBay, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}

	var searchResp ebaySearchResponse
	if err = json.Unmarshal(body, &searchResp); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling eBay search response, body:\n%s", misc.BytesLimit(body, 500))
	}
	if len(searchResp.FindItemsByKeywordsResponse) == 0 {
		return nil, errors.Wrapf(ErrEbay, "empty eBay search response, body:\n%s", misc.BytesLimit(body, 500))
	}

	var items []ebayItem
	for _, sr := range searchResp.FindItemsByKeywordsResponse[0].SearchResult {
		items = append(items, sr.Item...)
	}

	now := time.Now()
	ls := make([]model.Listing, 0, len(items))
	for _, it := range items {
		l, ok := it.toListing(now)
		if !ok {
			a.logger.Warnf("Search: Skipping eBay item with missing fields: %#v", it)
			continue
		}
		ls = append(ls, l)
	}
	return ls, nil
}

func (it ebayItem) toListing(now time.Time) (model.Listing, bool) {
	id := firstString(it.ItemID)
	title := firstString(it.Title)
	if id == "" || title == "" {
		return model.Listing{}, false
	}

	var price float64
	if len(it.SellingStatus) > 0 && len(it.SellingStatus[0].CurrentPrice) > 0 {
		p, err := strconv.ParseFloat(it.SellingStatus[0].CurrentPrice[0].Value, 64)
		if err != nil {
			return model.Listing{}, false
		}
		price = p
	}

	postedAt := now
	if len(it.ListingInfo) > 0 {
		if t, err := time.Parse(time.RFC3339, firstString(it.ListingInfo[0].StartTime)); err == nil {
			postedAt = t
		}
	}

	var condition string
	if len(it.Condition) > 0 {
		condition = firstString(it.Condition[0].ConditionDisplayName)
	}

	var seller model.Seller
	if len(it.SellerInfo) > 0 {
		seller.Name = firstString(it.SellerInfo[0].SellerUserName)
		if fb, err := strconv.ParseFloat(firstString(it.SellerInfo[0].PositiveFeedbackPercent), 64); err == nil {
			seller.Rating = fb / 20 // feedback percent to a 0-5 scale
		}
	}

	return model.Listing{
		ExternalID:  id,
		Title:       title,
		Price:       price,
		ImageURL:    firstString(it.GalleryURL),
		URL:         firstString(it.ViewItemURL),
		Marketplace: Ebay,
		PostedAt:    postedAt,
		Condition:   condition,
		Location:    firstString(it.Location),
		Seller:      seller,
	}, true
}

func (a *ebayAdapter) ItemDetails(ctx context.Context, externalID string) (json.RawMessage, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on eBay rate limiter")
	}
	params := url.Values{}
	params.Set("callname", "GetSingleItem")
	params.Set("responseencoding", "JSON")
	params.Set("appid", a.appID)
	params.Set("siteid", "0")
	params.Set("version", "967")
	params.Set("ItemID", externalID)
	params.Set("IncludeSelector", "Description,ItemSpecifics")

	apiURL := a.shoppingBaseURL + "?" + params.Encode()
	req, err := newRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request from apiURL: %s", apiURL)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrEbay, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 500*1024))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading eBay item response body, apiURL: %s", apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrEbay, "error getting eBay item, status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}
	return body, nil
}

func (a *ebayAdapter) HealthCheck(ctx context.Context) bool {
	_, err := a.Search(ctx, model.SearchQuery{Keywords: "test"})
	if err != nil {
		a.logger.Debugf("HealthCheck: eBay unreachable, err: %v", err)
		return false
	}
	return true
}

func ebaySortOrder(sortBy string) string {
	switch sortBy {
	case model.SortPriceLow:
		return "PricePlusShippingLowest"
	case model.SortPriceHigh:
		return "PricePlusShippingHighest"
	case model.SortRelevance:
		return "BestMatch"
	default:
		return "StartTimeNewest"
	}
}

func setEbayItemFilter(params url.Values, idx int, name string, value string) {
	prefix := "itemFilter(" + strconv.Itoa(idx) + ")"
	params.Set(prefix+".name", name)
	params.Set(prefix+".value", value)
	params.Set(prefix+".paramName", "Currency")
	params.Set(prefix+".paramValue", "USD")
}

func firstString(ss []string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return ""
}
