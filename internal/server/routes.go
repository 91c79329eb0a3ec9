package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMw, s.maxBytesMw)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/marketplace/health", s.marketplaceHealth()).Methods(http.MethodGet)

	marketplaceAPI := api.PathPrefix("/marketplace").Subrouter()
	marketplaceAPI.Use(s.authMw)
	marketplaceAPI.HandleFunc("/{marketplace}/item/{itemID}", s.marketplaceItem()).Methods(http.MethodGet)

	searchAPI := api.PathPrefix("/search").Subrouter()
	searchAPI.Use(s.authMw)
	searchAPI.HandleFunc("", s.searchCreate()).Methods(http.MethodPost)
	searchAPI.HandleFunc("", s.searchList()).Methods(http.MethodGet)
	searchAPI.HandleFunc("/execute", s.searchExecute()).Methods(http.MethodPost)
	searchAPI.HandleFunc("/{searchID}/active", s.searchSetActive()).Methods(http.MethodPost)
	searchAPI.HandleFunc("/{searchID}/results", s.searchResults()).Methods(http.MethodGet)
	searchAPI.PathPrefix("").Handler(s.notFoundHandler())

	notificationAPI := api.PathPrefix("/notification").Subrouter()
	notificationAPI.Use(s.authMw)
	notificationAPI.HandleFunc("", s.notificationList()).Methods(http.MethodGet)
	notificationAPI.HandleFunc("", s.notificationDeleteAll()).Methods(http.MethodDelete)
	notificationAPI.HandleFunc("/read-all", s.notificationReadAll()).Methods(http.MethodPost)
	notificationAPI.HandleFunc("/{notificationID}/read", s.notificationRead()).Methods(http.MethodPost)
	notificationAPI.HandleFunc("/{notificationID}", s.notificationDelete()).Methods(http.MethodDelete)
	notificationAPI.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
