package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"thriftwatch/internal/database"
	"thriftwatch/internal/model"
)

const searchResultsDefaultLimit = 50

func (s Server) searchCreate() http.HandlerFunc {
	type request struct {
		Name              string   `json:"name"`
		Keywords          string   `json:"keywords"`
		MinPrice          *float64 `json:"min_price"`
		MaxPrice          *float64 `json:"max_price"`
		Marketplaces      []string `json:"marketplaces"`
		Conditions        []string `json:"conditions"`
		Location          string   `json:"location"`
		SortBy            string   `json:"sort_by"`
		MinRelevanceScore int      `json:"min_relevance_score"`
		NotifyEnabled     bool     `json:"notify_enabled"`
		EmailEnabled      bool     `json:"email_enabled"`
	}
	type response struct {
		SearchID string `json:"search_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchCreate: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("searchCreate: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		ss := model.SavedSearch{
			OwnerID:           uc.ownerID,
			Name:              req.Name,
			Keywords:          req.Keywords,
			MinPrice:          req.MinPrice,
			MaxPrice:          req.MaxPrice,
			Marketplaces:      req.Marketplaces,
			Conditions:        req.Conditions,
			Location:          req.Location,
			SortBy:            req.SortBy,
			MinRelevanceScore: req.MinRelevanceScore,
			NotifyEnabled:     req.NotifyEnabled,
			EmailEnabled:      req.EmailEnabled,
			Active:            true,
		}
		if ss.Name == "" {
			ss.Name = ss.Keywords
		}
		if ss.MinRelevanceScore == 0 {
			ss.MinRelevanceScore = model.MinRelevanceScoreDefault
		}
		if ss.SortBy == "" {
			ss.SortBy = model.SortNewest
		}
		if err := ss.Validate(); err != nil {
			s.Logger.Debugf("searchCreate: Invalid SavedSearch, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, m := range ss.Marketplaces {
			if _, ok := s.Registry.Adapter(m); !ok {
				s.Logger.Debugf("searchCreate: Unknown marketplace: %s", m)
				http.Error(w, "unknown marketplace: "+m, http.StatusBadRequest)
				return
			}
		}

		searchID, err := s.DB.SavedSearchInsert(r.Context(), ss)
		if err != nil {
			s.Logger.Errorf("searchCreate: Error inserting SavedSearch, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{SearchID: searchID}, http.StatusCreated)
	}
}

func (s Server) searchList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchList: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		sss, err := s.DB.SavedSearchesFindByOwner(r.Context(), uc.ownerID)
		if err != nil {
			s.Logger.Errorf("searchList: Error finding SavedSearches for OwnerID: %s, err: %v", uc.ownerID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if sss == nil {
			sss = []model.SavedSearch{}
		}
		s.writeJsonResponse(w, sss, http.StatusOK)
	}
}

func (s Server) searchExecute() http.HandlerFunc {
	type request struct {
		SearchID string `json:"search_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchExecute: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("searchExecute: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		searchID, err := primitive.ObjectIDFromHex(req.SearchID)
		if err != nil {
			s.Logger.Debugf("searchExecute: Bad SearchID: %s, err: %v", req.SearchID, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		ss, err := s.DB.SavedSearchFindOne(r.Context(), searchID, uc.ownerID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("searchExecute: Error finding SavedSearch ID: %s, err: %v", req.SearchID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		sum, err := executeSearch(r.Context(), s.pipeline(), ss)
		if err != nil {
			s.Logger.Errorf("searchExecute: Error executing SavedSearch ID: %s, err: %v", req.SearchID, err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		s.writeJsonResponse(w, sum, http.StatusOK)
	}
}

func (s Server) searchSetActive() http.HandlerFunc {
	type request struct {
		Active bool `json:"active"`
	}
	type response struct {
		SearchID string `json:"search_id"`
		Active   bool   `json:"active"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchSetActive: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		searchIDStr := mux.Vars(r)["searchID"]
		searchID, err := primitive.ObjectIDFromHex(searchIDStr)
		if err != nil {
			s.Logger.Debugf("searchSetActive: Bad SearchID: %s, err: %v", searchIDStr, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("searchSetActive: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := s.DB.SavedSearchSetActive(r.Context(), searchID, uc.ownerID, req.Active); err != nil {
			if errors.Is(err, database.ErrNoDocumentsModified) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("searchSetActive: Error setting Active for SavedSearch ID: %s, err: %v", searchIDStr, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{SearchID: searchIDStr, Active: req.Active}, http.StatusOK)
	}
}

func (s Server) searchResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("searchResults: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		searchIDStr := mux.Vars(r)["searchID"]
		searchID, err := primitive.ObjectIDFromHex(searchIDStr)
		if err != nil {
			s.Logger.Debugf("searchResults: Bad SearchID: %s, err: %v", searchIDStr, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		limit := int64(searchResultsDefaultLimit)
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.ParseInt(l, 10, 64)
			if err != nil || parsed < 1 || parsed > 200 {
				s.Logger.Debugf("searchResults: Bad limit: %s", l)
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		recs, err := s.DB.SearchResultsFindBySearch(r.Context(), searchID, uc.ownerID, limit)
		if err != nil {
			s.Logger.Errorf("searchResults: Error finding SearchResultRecords for SearchID: %s, err: %v", searchIDStr, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []model.SearchResultRecord{}
		}
		s.writeJsonResponse(w, recs, http.StatusOK)
	}
}

func (s Server) marketplaceHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJsonResponse(w, s.Registry.Health(r.Context()), http.StatusOK)
	}
}

// marketplaceItem proxies the marketplace's raw item payload, for clients
// that want detail beyond the normalized Listing shape.
func (s Server) marketplaceItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		name := vars["marketplace"]
		itemID := vars["itemID"]

		adapter, ok := s.Registry.Adapter(name)
		if !ok {
			s.Logger.Debugf("marketplaceItem: Unknown marketplace: %s", name)
			http.Error(w, "unknown marketplace: "+name, http.StatusBadRequest)
			return
		}

		raw, err := adapter.ItemDetails(r.Context(), itemID)
		if err != nil {
			s.Logger.Errorf("marketplaceItem: Error getting item details from marketplace: %s, ItemID: %s, err: %v",
				name, itemID, err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if _, err := w.Write(raw); err != nil {
			s.Logger.Errorf("marketplaceItem: Error writing response, err: %v", err)
		}
	}
}
