package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftwatch/internal/database"
	"thriftwatch/internal/model"
)

const notificationsDefaultLimit = 50

func (s Server) notificationList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationList: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		limit := int64(notificationsDefaultLimit)
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.ParseInt(l, 10, 64)
			if err != nil || parsed < 1 || parsed > 200 {
				s.Logger.Debugf("notificationList: Bad limit: %s", l)
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		ns, err := s.DB.NotificationsFindByOwner(r.Context(), uc.ownerID, limit)
		if err != nil {
			s.Logger.Errorf("notificationList: Error finding Notifications for OwnerID: %s, err: %v", uc.ownerID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if ns == nil {
			ns = []model.Notification{}
		}
		s.writeJsonResponse(w, ns, http.StatusOK)
	}
}

func (s Server) notificationRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationRead: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		idStr := mux.Vars(r)["notificationID"]
		id, err := primitive.ObjectIDFromHex(idStr)
		if err != nil {
			s.Logger.Debugf("notificationRead: Bad NotificationID: %s, err: %v", idStr, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := s.DB.NotificationSetRead(r.Context(), id, uc.ownerID); err != nil {
			if errors.Is(err, database.ErrNoDocumentsModified) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("notificationRead: Error marking Notification read, ID: %s, err: %v", idStr, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s Server) notificationReadAll() http.HandlerFunc {
	type response struct {
		Updated int64 `json:"updated"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationReadAll: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		n, err := s.DB.NotificationsSetAllRead(r.Context(), uc.ownerID)
		if err != nil {
			s.Logger.Errorf("notificationReadAll: Error marking all Notifications read for OwnerID: %s, err: %v", uc.ownerID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Updated: n}, http.StatusOK)
	}
}

func (s Server) notificationDeleteAll() http.HandlerFunc {
	type response struct {
		Deleted int64 `json:"deleted"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationDeleteAll: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		n, err := s.DB.NotificationsDeleteAll(r.Context(), uc.ownerID)
		if err != nil {
			s.Logger.Errorf("notificationDeleteAll: Error deleting all Notifications for OwnerID: %s, err: %v", uc.ownerID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Deleted: n}, http.StatusOK)
	}
}

func (s Server) notificationDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("notificationDelete: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		idStr := mux.Vars(r)["notificationID"]
		id, err := primitive.ObjectIDFromHex(idStr)
		if err != nil {
			s.Logger.Debugf("notificationDelete: Bad NotificationID: %s, err: %v", idStr, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := s.DB.NotificationDelete(r.Context(), id, uc.ownerID); err != nil {
			if errors.Is(err, database.ErrNoDocumentsModified) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("notificationDelete: Error deleting Notification, ID: %s, err: %v", idStr, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
