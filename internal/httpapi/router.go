package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig assembles the handlers and middleware composing the API
// surface.
type RouterConfig struct {
	Meetings    *MeetingHandler
	Backgrounds *BackgroundHandler
	Middleware  []mux.MiddlewareFunc
}

// NewRouter builds the service router. All /api responses carry no-store
// cache headers.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(NoCache)

	if cfg.Meetings != nil {
		api.HandleFunc("/meetings", cfg.Meetings.List).Methods(http.MethodGet)
		api.HandleFunc("/meetings", cfg.Meetings.Create).Methods(http.MethodPost)
		api.HandleFunc("/meetings/batch", cfg.Meetings.BatchReplace).Methods(http.MethodPost)
		api.HandleFunc("/meetings/{id}", cfg.Meetings.Get).Methods(http.MethodGet)
		api.HandleFunc("/meetings/{id}", cfg.Meetings.Update).Methods(http.MethodPut)
		api.HandleFunc("/meetings/{id}", cfg.Meetings.Delete).Methods(http.MethodDelete)
	}

	if cfg.Backgrounds != nil {
		api.HandleFunc("/backgrounds/upload", cfg.Backgrounds.Upload).Methods(http.MethodPost)
		api.HandleFunc("/backgrounds", cfg.Backgrounds.Current).Methods(http.MethodGet)
		api.HandleFunc("/backgrounds/{filename}", cfg.Backgrounds.Serve).Methods(http.MethodGet)
		api.HandleFunc("/backgrounds/{type}", cfg.Backgrounds.Remove).Methods(http.MethodDelete)
	}

	for _, middleware := range cfg.Middleware {
		if middleware != nil {
			router.Use(middleware)
		}
	}

	return router
}
