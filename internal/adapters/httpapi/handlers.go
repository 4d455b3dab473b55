package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alejandrodnm/sentinel/internal/application/ledger"
	"github.com/alejandrodnm/sentinel/internal/application/orchestrator"
	"github.com/alejandrodnm/sentinel/internal/domain"
)

// Demo trade fijo para presentaciones; no pasa por el gate de inteligencia.
const (
	demoNotionalUSD = 1000
	demoProfitUSD   = 25.50
)

type submitRequest struct {
	Tip    *string `json:"tip"`
	UserID string  `json:"userId"`
}

// submitResponse no cambia si se abrió un trade; eso solo queda en el log.
type submitResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	TipID     string    `json:"tipId"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// runView is the JSON shape of a journal row.
type runView struct {
	TipID      string    `json:"tipId"`
	UserID     string    `json:"userId"`
	Tip        string    `json:"tip"`
	Response   string    `json:"response"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Verified   bool      `json:"verified"`
	Confidence int       `json:"confidence"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   s.deps.ServiceName,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agentReady": s.deps.Submitter != nil,
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) handleSubmitTip(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request", "Request body must be a JSON object with a string tip")
		return
	}
	if req.Tip == nil || strings.TrimSpace(*req.Tip) == "" {
		s.sendError(w, http.StatusBadRequest, "Invalid request", "Tip must be a non-empty string")
		return
	}
	if s.deps.Submitter == nil {
		s.sendError(w, http.StatusServiceUnavailable, "Agent not ready", "The pipeline is not initialized")
		return
	}

	res, err := s.deps.Submitter.Submit(r.Context(), orchestrator.Submission{Tip: *req.Tip, UserID: req.UserID})
	switch {
	case errors.Is(err, domain.ErrInvalidTip):
		s.sendError(w, http.StatusBadRequest, "Invalid request", "Tip must be a non-empty string")
		return
	case err != nil:
		s.logger.Error("httpapi: submit failed", "err", err)
		s.sendError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:   true,
		Response:  res.Response,
		Timestamp: res.Timestamp,
		UserID:    res.UserID,
		TipID:     res.TipID,
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "prices": s.deps.Market.Snapshot()})
}

func (s *Server) handleMarketStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": s.deps.Market.Stats()})
}

func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "opportunity": s.deps.Market.Arbitrage()})
}

func (s *Server) handleDemoTrade(w http.ResponseWriter, r *http.Request) {
	trade := s.deps.Market.CreateTrade(domain.SideBuy, demoNotionalUSD, demoProfitUSD)
	s.deps.Metrics.RecordTradeOpened("demo")
	s.logger.Info("httpapi: demo trade", "tradeId", trade.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"trade":   trade,
		"message": "Demo trade executed for presentation!",
	})
}

func (s *Server) handleTipHistory(w http.ResponseWriter, r *http.Request) {
	tips := s.deps.Ledger.Query(r.URL.Query().Get("userId"))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tips": tips})
}

func (s *Server) handleTipStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": s.deps.Ledger.Stats()})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", ledger.DefaultLeaderboardLimit)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "leaderboard": s.deps.Ledger.Leaderboard(limit)})
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Ledger.UserProfile(chi.URLParam(r, "userId"))
	if errors.Is(err, domain.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "", "User not found")
		return
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": profile})
}

func (s *Server) handlePipelineRuns(w http.ResponseWriter, r *http.Request) {
	views := []runView{}
	if s.deps.Journal != nil {
		runs, err := s.deps.Journal.RecentRuns(r.Context(), queryInt(r, "limit", defaultRuns))
		if err != nil {
			s.logger.Error("httpapi: journal read failed", "err", err)
			s.sendError(w, http.StatusInternalServerError, "Internal server error", "Failed to read pipeline runs")
			return
		}
		for _, run := range runs {
			views = append(views, runView{
				TipID:      run.TipID,
				UserID:     run.UserID,
				Tip:        run.Tip,
				Response:   run.RawResponse,
				Error:      run.Err,
				StartedAt:  run.StartedAt,
				DurationMs: run.Duration.Milliseconds(),
				Verified:   run.Verified,
				Confidence: run.Confidence,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": views})
}

// --- helpers ---

// queryInt devuelve def si el parámetro falta, no es un entero o no es positivo.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends a JSON error response.
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: code, Message: message})
}
