package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poolpulse/poolpulse/internal/analyzer"
	"github.com/poolpulse/poolpulse/internal/engine"
	"github.com/poolpulse/poolpulse/internal/logger"
	"github.com/poolpulse/poolpulse/internal/planner"
	"github.com/poolpulse/poolpulse/internal/state"
	"github.com/poolpulse/poolpulse/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// Bounds for on-demand requests that fan out to upstream providers.
const onDemandTimeout = 30 * time.Second

// Defaults for range suggestions when the caller omits parameters.
const (
	defaultHorizonDays = 7.0
	defaultCapitalUSD  = 10000.0
)

// WebServer handles HTTP requests for score and range data
type WebServer struct {
	router *mux.Router
	engine *engine.Engine
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, scoringEngine *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		engine: scoringEngine,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health and metrics endpoints (direct routes)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/scores", ws.handleGetScores).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/pools/{chain}/{address}/score", ws.handleGetPoolScore).Methods("GET")
	api.HandleFunc("/pools/{chain}/{address}/history", ws.handleGetPoolHistory).Methods("GET")
	api.HandleFunc("/pools/{chain}/{address}/range", ws.handleSuggestRange).Methods("GET")
	api.HandleFunc("/allocations", ws.handleSuggestAllocations).Methods("GET")
	api.HandleFunc("/weights", ws.handleGetWeights).Methods("GET")
	api.HandleFunc("/weights", ws.handleUpdateWeights).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var hasErrors bool

	// Get latest scoreboard information
	summary, summaryErr := state.GetScoreboardSummary()
	var scoreboardInfo map[string]interface{}

	if summaryErr == nil && summary.PoolCount > 0 {
		scoreboardInfo = map[string]interface{}{
			"pool_count":       summary.PoolCount,
			"suspect_count":    summary.SuspectCount,
			"average_total":    summary.AverageTotal,
			"last_pass_id":     summary.LastPassID,
			"last_computed_at": summary.LastComputedAt,
		}
	} else {
		scoreboardInfo = map[string]interface{}{
			"pool_count":       0,
			"suspect_count":    0,
			"average_total":    0,
			"last_pass_id":     "",
			"last_computed_at": nil,
		}
		hasErrors = true // No score data available indicates an issue
	}

	// Get database connection status
	dbHealthy := true
	dbErr := state.TestDBConnection()
	if dbErr != nil {
		dbHealthy = false
		hasErrors = true
	}

	// Determine overall status
	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "poolpulse-scoring-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"has_recent_errors": hasErrors,
			"tracked_pools":     len(ws.engine.TrackedPools()),
			"scoreboard":        scoreboardInfo,
		},
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetScores returns the latest score per pool, best total first
func (ws *WebServer) handleGetScores(w http.ResponseWriter, r *http.Request) {
	scores, err := state.GetLatestScores()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get latest scores")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve scores")
		return
	}

	response := map[string]interface{}{
		"scores": scores,
		"count":  len(scores),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSummary returns headline statistics over the latest scores
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := state.GetScoreboardSummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get scoreboard summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve scoreboard summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetPoolScore scores one pool on demand, including the cross-venue
// consensus check against every configured source
func (ws *WebServer) handleGetPoolScore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chain := vars["chain"]
	address := vars["address"]

	ctx, cancel := context.WithTimeout(r.Context(), onDemandTimeout)
	defer cancel()

	score, health, err := ws.engine.ScorePool(ctx, chain, address)
	if err != nil {
		if errors.Is(err, engine.ErrPoolNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
			return
		}
		webLogger.Error().Err(err).Str("chain", chain).Str("address", address).Msg("Failed to score pool")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to score pool")
		return
	}

	response := map[string]interface{}{
		"score":  score,
		"health": health,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolHistory returns recent persisted scores for one pool
func (ws *WebServer) handleGetPoolHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := types.MakePoolID(vars["chain"], vars["address"])

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	scores, err := state.GetPoolScoreHistory(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Str("poolID", string(poolID)).Msg("Failed to get pool score history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve score history")
		return
	}
	if len(scores) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "No scores recorded for pool")
		return
	}

	response := map[string]interface{}{
		"pool_id": poolID,
		"scores":  scores,
		"count":   len(scores),
		"limit":   limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleSuggestRange returns a liquidity range suggestion with fee and
// breach estimates for one pool
func (ws *WebServer) handleSuggestRange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chain := vars["chain"]
	address := vars["address"]

	mode := types.ModeNormal
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		parsed, err := types.ParseRiskMode(modeStr)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid mode: must be DEFENSIVE, NORMAL, or AGGRESSIVE")
			return
		}
		mode = parsed
	}

	horizonDays := defaultHorizonDays
	if horizonStr := r.URL.Query().Get("horizon_days"); horizonStr != "" {
		parsed, err := strconv.ParseFloat(horizonStr, 64)
		if err != nil || parsed <= 0 || parsed > 365 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid horizon_days: must be in (0, 365]")
			return
		}
		horizonDays = parsed
	}

	capitalUSD := defaultCapitalUSD
	if capitalStr := r.URL.Query().Get("capital"); capitalStr != "" {
		parsed, err := strconv.ParseFloat(capitalStr, 64)
		if err != nil || parsed < 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid capital: must be a non-negative number")
			return
		}
		capitalUSD = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), onDemandTimeout)
	defer cancel()

	rangeResult, feeEstimate, ilRisk, err := ws.engine.SuggestRange(ctx, chain, address, mode, horizonDays, capitalUSD)
	if err != nil {
		if errors.Is(err, engine.ErrPoolNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
			return
		}
		webLogger.Error().Err(err).Str("chain", chain).Str("address", address).Msg("Failed to suggest range")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to suggest range")
		return
	}

	response := map[string]interface{}{
		"range":        rangeResult,
		"fee_estimate": feeEstimate,
		"il_risk":      ilRisk,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleSuggestAllocations scores the watchlist and returns an advisory
// capital split across the strongest pools
func (ws *WebServer) handleSuggestAllocations(w http.ResponseWriter, r *http.Request) {
	capitalUSD := defaultCapitalUSD
	if capitalStr := r.URL.Query().Get("capital"); capitalStr != "" {
		parsed, err := strconv.ParseFloat(capitalStr, 64)
		if err != nil || parsed <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid capital: must be a positive number")
			return
		}
		capitalUSD = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), onDemandTimeout)
	defer cancel()

	plan, err := ws.engine.SuggestAllocations(ctx, capitalUSD)
	if err != nil {
		if errors.Is(err, planner.ErrNoEligiblePools) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No pools eligible for allocation")
			return
		}
		webLogger.Error().Err(err).Float64("capitalUSD", capitalUSD).Msg("Failed to build allocation plan")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to build allocation plan")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, plan)
}

// handleGetWeights returns the active scoring weights
func (ws *WebServer) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"weights":   ws.engine.Weights(),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleUpdateWeights validates and activates a new weights version
func (ws *WebServer) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	var weights types.ScoreWeights
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	version, err := ws.engine.UpdateWeights(weights)
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidScoreWeights) {
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		webLogger.Error().Err(err).Msg("Failed to update score weights")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to update weights")
		return
	}

	response := map[string]interface{}{
		"weights":   ws.engine.Weights(),
		"version":   version,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
