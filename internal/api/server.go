// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/format"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/history"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/index"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/scope"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/search"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP server.
type Server struct {
	index     *index.Cache
	engine    *search.Engine
	history   history.Store
	formatter *format.Formatter
}

// NewServer creates a new server.
func NewServer(idx *index.Cache, engine *search.Engine, hist history.Store, formatter *format.Formatter) *Server {
	if formatter == nil {
		formatter = format.New(0)
	}
	return &Server{
		index:     idx,
		engine:    engine,
		history:   hist,
		formatter: formatter,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /reindex", s.handleReindex)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /history", s.handleHistory)

	// metrics sits inside logging so it sees the pattern the mux sets.
	return logging.Middleware(metrics.Middleware(mux))
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ReindexRequest selects the folders to index.
type ReindexRequest struct {
	FolderIDs []string `json:"folder_ids"`
	Force     bool     `json:"force"`
}

// ReindexResponse reports the ensure outcome.
type ReindexResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SearchRequest carries a query.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the top record plus its rendered key/value block.
type SearchResponse struct {
	format.Record
	Stage string `json:"stage"`
	Text  string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.index.Stats())
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req ReindexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	outcome, err := s.index.Ensure(r.Context(), req.FolderIDs, req.Force)
	if errors.Is(err, scope.ErrEmptySelection) {
		writeJSON(w, http.StatusOK, ReindexResponse{Status: "skipped", Reason: err.Error()})
		return
	}
	if err != nil {
		s.sendFailure(w, r, "reindex", err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Status: string(outcome)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		sendError(w, http.StatusBadRequest, "query required")
		return
	}

	res, err := s.engine.Search(r.Context(), req.Query)
	if err != nil {
		s.sendFailure(w, r, "search", err)
		return
	}

	if res.Record.Found() && s.history != nil {
		err := s.history.Add(r.Context(), history.Entry{
			Query:  req.Query,
			FileID: res.FileID,
			Name:   res.Record.Name,
			Path:   res.Record.Path,
			URL:    res.Record.URL,
			Stage:  string(res.Stage),
		})
		if err != nil {
			logging.WithContext(r.Context()).Warn("record history failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Record: s.formatter.Clipped(res.Record),
		Stage:  string(res.Stage),
		Text:   s.formatter.Render(res.Record),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.sendFailure(w, r, "history", err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// sendFailure maps an error to its status code and logs it.
func (s *Server) sendFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := http.StatusInternalServerError
	var cfgErr *scope.ConfigError
	var transportErr *drive.TransportError
	switch {
	case errors.As(err, &cfgErr):
		code = http.StatusBadRequest
	case errors.Is(err, drive.ErrNoDrive):
		code = http.StatusServiceUnavailable
	case errors.As(err, &transportErr):
		code = http.StatusBadGateway
	}
	logging.WithContext(r.Context()).Error(op+" failed", zap.Int("status", code), zap.Error(err))
	sendError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message, Code: code})
}
