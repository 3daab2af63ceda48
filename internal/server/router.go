package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the HTTP router with all routes and middleware.
func NewRouter(handlers *Handlers, logger *logrus.Logger) http.Handler {
	r := mux.NewRouter()

	r.Use(mux.MiddlewareFunc(recoveryMiddleware(logger)))
	r.Use(requestIDMiddleware)
	r.Use(mux.MiddlewareFunc(loggingMiddleware(logger)))

	r.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.Version).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict/{model}", handlers.Predict).Methods(http.MethodPost)
	api.HandleFunc("/models", handlers.ListModels).Methods(http.MethodGet)
	api.HandleFunc("/metrics", handlers.Metrics).Methods(http.MethodGet)
	api.HandleFunc("/metrics/{model}", handlers.ModelMetrics).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/models/{model}/reload", handlers.ReloadModel).Methods(http.MethodPost)
	admin.HandleFunc("/models/{model}/rollback", handlers.RollbackModel).Methods(http.MethodPost)
	admin.HandleFunc("/models/{model}/version", handlers.SetModelVersion).Methods(http.MethodPut)
	admin.HandleFunc("/models/{model}/reference", handlers.SaveReference).Methods(http.MethodPost)
	admin.HandleFunc("/models/{model}/drift", handlers.DetectDrift).Methods(http.MethodPost)
	admin.HandleFunc("/cache", handlers.CacheInfo).Methods(http.MethodGet)
	admin.HandleFunc("/cache/clear", handlers.ClearCache).Methods(http.MethodPost)

	return r
}
