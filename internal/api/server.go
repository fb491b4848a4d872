package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/questionsim/internal/config"
	"github.com/knowledge-engine/questionsim/internal/engine"
	"github.com/knowledge-engine/questionsim/internal/search"
	"github.com/knowledge-engine/questionsim/internal/storage"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router *http.ServeMux
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger,
		Router: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/load", s.handleLoad)
	s.Router.HandleFunc("/api/v1/status", s.handleStatus)
	s.Router.HandleFunc("/api/v1/questions", s.handleQuestions)
	s.Router.HandleFunc("/api/v1/similar", s.handleSimilar)
	s.Router.HandleFunc("/api/v1/export", s.handleExport)
}

// Start serves the API until the listener fails.
func (s *Server) Start(cfg config.ServerConfig) error {
	s.Logger.Infof("Starting API Server on %s", cfg.Addr)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type LoadRequest struct {
	Source string `json:"source"`
}

type QuestionsResponse struct {
	Filter    string                `json:"filter"`
	Total     int                   `json:"total"`
	Questions []engine.QuestionView `json:"questions"`
}

type SimilarResponse struct {
	Query     engine.QuestionView `json:"query"`
	Threshold float64             `json:"threshold"`
	Count     int                 `json:"count"`
	Results   []SimilarResultView `json:"results"`
}

type SimilarResultView struct {
	Index      int         `json:"index"`
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	Score      float64     `json:"score"`
	Similarity string      `json:"similarity"`
	Band       search.Band `json:"band"`
}

type ExportRequest struct {
	Index     int      `json:"index"`
	Threshold *float64 `json:"threshold"`
	Format    string   `json:"format"`
}

type StatusResponse struct {
	engine.Status
	Uptime string `json:"uptime"`
}

type ExportResponse struct {
	Path string `json:"path"`
}

// Handlers

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "source is required"})
		return
	}

	if err := s.Engine.StartLoad(req.Source); err != nil {
		s.writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]string{"status": "load_started", "source": req.Source})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := s.Engine.Status()
	jsonResponse(w, http.StatusOK, StatusResponse{
		Status: status,
		Uptime: time.Since(status.Stats.StartTime).Round(time.Second).String(),
	})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := r.URL.Query().Get("q")
	questions, err := s.Engine.Questions(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, QuestionsResponse{
		Filter:    filter,
		Total:     len(questions),
		Questions: questions,
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'index' must be an integer"})
		return
	}
	threshold := s.threshold(r.URL.Query().Get("threshold"))

	res, err := s.Engine.Similar(index, threshold)
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := SimilarResponse{
		Query:     res.Query,
		Threshold: res.Threshold,
		Count:     len(res.Matches),
		Results:   make([]SimilarResultView, len(res.Matches)),
	}
	for i, m := range res.Matches {
		response.Results[i] = SimilarResultView{
			Index:      m.Position,
			ID:         m.ID,
			Question:   m.Text,
			Score:      m.Score,
			Similarity: storage.FormatPercent(m.Percent),
			Band:       m.Band,
		}
	}

	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	threshold := s.Engine.Config.Similarity.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	path, err := s.Engine.Export(req.Index, threshold, req.Format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, ExportResponse{Path: path})
}

// threshold parses a percentage, falling back to the configured default
// when the value is missing or not a number.
func (s *Server) threshold(raw string) float64 {
	if raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return s.Engine.Config.Similarity.DefaultThreshold
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidPosition),
		errors.Is(err, storage.ErrUnsupportedFormat):
		code = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoResults):
		code = http.StatusNotFound
	case errors.Is(err, engine.ErrLoadInProgress):
		code = http.StatusConflict
	case errors.Is(err, engine.ErrNotLoaded):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.Logger.WithError(err).Error("Request failed")
	}
	jsonResponse(w, code, ErrorResponse{Error: err.Error()})
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
