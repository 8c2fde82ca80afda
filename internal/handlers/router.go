package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/velora-wms/pickflow/internal/config"
	"github.com/velora-wms/pickflow/internal/database"
	"github.com/velora-wms/pickflow/internal/middleware"
	"github.com/velora-wms/pickflow/internal/picking"
	ws "github.com/velora-wms/pickflow/internal/websocket"
)

// Router wraps the mux router with the database and the picking engine
type Router struct {
	*mux.Router
	db     *database.DB
	engine *picking.Engine
	hub    *ws.Hub
	cfg    *config.Config
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, engine *picking.Engine, hub *ws.Hub, cfg *config.Config) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		engine: engine,
		hub:    hub,
		cfg:    cfg,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// WebSocket endpoint for progress dashboards and scanner terminals
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))

	// Batch lifecycle
	api.HandleFunc("/batches", r.listBatches).Methods("GET")
	api.HandleFunc("/batches/check", r.checkConflicts).Methods("POST")
	api.HandleFunc("/batches/{id}", r.getBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/picklist", r.pickListPDF).Methods("GET")
	api.HandleFunc("/batches/{id}/summary", r.batchSummary).Methods("GET")

	// Picking session
	api.HandleFunc("/batches/{id}/start", r.startSession).Methods("POST")
	api.HandleFunc("/batches/{id}/current", r.currentItem).Methods("GET")
	api.HandleFunc("/batches/{id}/pick", r.confirmPick).Methods("POST")
	api.HandleFunc("/batches/{id}/skip", r.skipCurrent).Methods("POST")

	// Lock inspection
	api.HandleFunc("/locks/status", r.lockStatus).Methods("GET")
	api.HandleFunc("/orders/{orderNo}/locked", r.lockedLines).Methods("GET")

	// Management routes (batch planners only)
	manage := api.NewRoute().Subrouter()
	manage.Use(middleware.RequireRole("admin", "warehouse_manager"))
	manage.HandleFunc("/batches", r.createBatch).Methods("POST")
	manage.HandleFunc("/batches/{id}", r.editBatch).Methods("PUT")
	manage.HandleFunc("/batches/{id}", r.deleteBatch).Methods("DELETE")
	manage.HandleFunc("/batches/{id}/assign", r.assignPicker).Methods("POST")
	manage.HandleFunc("/batches/{id}/locks/refresh", r.refreshLocks).Methods("POST")
	manage.HandleFunc("/batches/{id}/force-complete", r.forceComplete).Methods("POST")
	manage.HandleFunc("/lines/reset", r.resetLine).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": "local",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondEngineError maps engine errors onto HTTP statuses. Conflict errors
// carry the structured report so the UI can show which batches hold what.
func respondEngineError(w http.ResponseWriter, err error) {
	var conflictErr *picking.ConflictError
	if errors.As(err, &conflictErr) {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     conflictErr.Error(),
			"conflicts": conflictErr.Report,
		})
		return
	}

	switch {
	case errors.Is(err, picking.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, picking.ErrLockConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, picking.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, picking.ErrZeroAvailable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
