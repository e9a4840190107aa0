package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/sentimen/internal/analyzer"
	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/fetcher"
	"github.com/pbaille/sentimen/internal/store"
	"go.uber.org/zap"
)

const (
	// similarLimit is how many look-alike reviews are attached to a result
	similarLimit = 5
	// maxPredictBody caps the JSON body of /api/predict
	maxPredictBody = 1 << 20
)

// PageInfo is the static text around the dashboard
type PageInfo struct {
	Title     string
	ModelName string
	Accuracy  string
	Banner    string
	Examples  []string
}

// DefaultExamples are offered in the sidebar picker
var DefaultExamples = []string{
	"Pelayanan sangat memuaskan dan cepat!",
	"Produk datang terlambat dan dalam kondisi rusak.",
	"Cukup standar, tidak ada yang istimewa.",
}

// Options configures a Server
type Options struct {
	Analyzer *analyzer.Analyzer
	Store    *store.Store // nil disables history
	Fetcher  *fetcher.Fetcher
	Logger   *zap.Logger
	Page     PageInfo
	Addr     string
}

// Server handles HTTP requests for the sentiment dashboard
type Server struct {
	analyzer *analyzer.Analyzer
	store    *store.Store
	fetcher  *fetcher.Fetcher
	logger   *zap.Logger
	page     PageInfo
	banner   *banner
	addr     string
}

// New creates a new dashboard server
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetcher.New(0)
	}
	if opts.Page.Title == "" {
		opts.Page.Title = "Analisis Sentimen Ulasan Pelanggan"
	}
	if opts.Page.Examples == nil {
		opts.Page.Examples = DefaultExamples
	}

	s := &Server{
		analyzer: opts.Analyzer,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		logger:   logger,
		page:     opts.Page,
		addr:     opts.Addr,
	}
	s.banner = loadBanner(opts.Page.Banner, logger)
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Dashboard
	mux.HandleFunc("GET /{$}", s.dashboard)
	mux.HandleFunc("POST /analyze", s.analyzeForm)
	mux.HandleFunc("GET /banner", s.serveBanner)

	// JSON API
	mux.HandleFunc("POST /api/predict", s.predict)
	mux.HandleFunc("GET /api/labels", s.listLabels)
	mux.HandleFunc("GET /api/history", s.listHistory)
	mux.HandleFunc("GET /api/history/{id}", s.getHistory)
	mux.HandleFunc("GET /api/search", s.searchHistory)
	mux.HandleFunc("GET /api/similar/{id}", s.similarTo)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withLogging(s.logger, withCORS(mux))
}

// Run starts the HTTP server and stops it when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(logger *zap.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"classes":    s.analyzer.Model().Classes(),
		"dimensions": s.analyzer.Model().Dim(),
		"history":    s.store != nil,
	})
}

// PredictRequest is the request body for a prediction
type PredictRequest struct {
	Text    string `json:"text"`
	URL     string `json:"url,omitempty"`
	NoStore bool   `json:"no_store,omitempty"`
}

// PredictResponse is the response for a prediction
type PredictResponse struct {
	Result     *analyzer.Result          `json:"result"`
	Prediction *domain.Prediction        `json:"prediction,omitempty"`
	Similar    []store.SimilarPrediction `json:"similar,omitempty"`
	Page       *fetcher.Page             `json:"page,omitempty"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPredictBody)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review := domain.Review{Text: req.Text, Source: domain.SourceTyped}
	var resp PredictResponse

	if strings.TrimSpace(req.URL) != "" {
		page, err := s.fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			writeError(w, fetchStatus(err), err.Error())
			return
		}
		review = domain.Review{Text: page.Text, Source: domain.SourceURL, URL: page.URL}
		resp.Page = page
	}

	res, err := s.analyzer.Analyze(r.Context(), review.Text)
	if err != nil {
		writeError(w, analyzeStatus(err), err.Error())
		return
	}
	resp.Result = res

	if !req.NoStore {
		resp.Prediction, resp.Similar = s.record(review, res)
	}

	writeJSON(w, http.StatusOK, resp)
}

// record stores a result in history when enabled. Failures are logged, not returned.
func (s *Server) record(review domain.Review, res *analyzer.Result) (*domain.Prediction, []store.SimilarPrediction) {
	if s.store == nil {
		return nil, nil
	}

	p, err := s.store.SavePrediction(res.Prediction(review))
	if err != nil {
		s.logger.Warn("save prediction", zap.Error(err))
		return nil, nil
	}

	// Find similar before saving the vector so we don't match ourselves
	similar, err := s.store.FindSimilar(res.Row(), res.Dimensions, similarLimit, p.ID)
	if err != nil {
		s.logger.Warn("find similar", zap.Error(err))
	}

	if err := s.store.SaveVector(p.ID, res.Row(), res.Dimensions); err != nil {
		s.logger.Warn("save vector", zap.Error(err))
	}

	return p, similar
}

// LabelEntry describes how one classifier class is displayed
type LabelEntry struct {
	Class int    `json:"class"`
	Emoji string `json:"emoji"`
	Label string `json:"label"`
	Color string `json:"color"`
	Known bool   `json:"known"`
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request) {
	table := s.analyzer.Labels()
	classes := s.analyzer.Model().Classes()

	entries := make([]LabelEntry, 0, len(classes))
	for _, c := range classes {
		info := table.Lookup(c)
		entries = append(entries, LabelEntry{
			Class: c,
			Emoji: info.Emoji,
			Label: info.Label,
			Color: info.Color,
			Known: table.Has(c),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"labels":  entries,
		"missing": table.Missing(classes),
	})
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return false
	}
	return true
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	predictions, err := s.store.ListPredictions(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	counts, err := s.store.CountByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"counts":      counts,
		"limit":       limit,
		"offset":      offset,
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	p, err := s.store.GetPrediction(r.PathValue("id"))
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) searchHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	predictions, err := s.store.SearchPredictions(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"query":       query,
	})
}

func (s *Server) similarTo(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	p, err := s.store.GetPrediction(r.PathValue("id"))
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}

	row, err := s.store.GetVector(p.ID)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}

	similar, err := s.store.FindSimilar(row, s.analyzer.Model().Dim(), similarLimit, p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prediction": p,
		"similar":    similar,
	})
}

func analyzeStatus(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fetchStatus(err error) int {
	if errors.Is(err, fetcher.ErrBlockedAddress) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAmbiguous):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
