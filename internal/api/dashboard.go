package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/sentimen/internal/analyzer"
	"github.com/pbaille/sentimen/internal/domain"
	"github.com/pbaille/sentimen/internal/store"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").ParseFS(templateFS, "templates/dashboard.html"))

const (
	msgEmptyInput   = "⚠️ Mohon masukkan teks ulasan terlebih dahulu!"
	msgFetchFailed  = "❌ Gagal mengambil ulasan dari URL: "
	msgPredictError = "❌ Terjadi error saat prediksi: "
)

type example struct {
	Index    int
	Text     string
	Selected bool
}

type dashboardData struct {
	Page          PageInfo
	HasBanner     bool
	BannerMissing bool
	Examples      []example
	Text          string
	URL           string
	Warning       string
	Error         string
	Result        *analyzer.Result
	Chart         *barChart
	Prediction    *domain.Prediction
	Similar       []store.SimilarPrediction
	Counts        []domain.LabelCount
	Year          int
}

func (s *Server) newDashboardData(text string, selected int) *dashboardData {
	d := &dashboardData{
		Page:          s.page,
		HasBanner:     s.banner != nil,
		BannerMissing: s.page.Banner != "" && s.banner == nil,
		Text:          text,
		Year:          time.Now().Year(),
	}

	for i, ex := range s.page.Examples {
		d.Examples = append(d.Examples, example{Index: i, Text: ex, Selected: i == selected})
	}

	if s.store != nil {
		counts, err := s.store.CountByLabel()
		if err != nil {
			s.logger.Warn("count by label", zap.Error(err))
		}
		d.Counts = counts
	}
	return d
}

// dashboard renders the empty form, optionally prefilled with an example
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	selected := -1
	text := ""

	if v := r.URL.Query().Get("example"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(s.page.Examples) {
			selected = n
			text = s.page.Examples[n]
		}
	}

	s.render(w, http.StatusOK, s.newDashboardData(text, selected))
}

// analyzeForm handles the analysis button
func (s *Server) analyzeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("text")
	rawURL := strings.TrimSpace(r.PostFormValue("url"))

	data := s.newDashboardData(text, -1)
	data.URL = rawURL
	review := domain.Review{Text: text, Source: domain.SourceTyped}

	for _, ex := range s.page.Examples {
		if ex == text {
			review.Source = domain.SourceExample
			break
		}
	}

	if rawURL != "" && strings.TrimSpace(text) == "" {
		page, err := s.fetcher.Fetch(r.Context(), rawURL)
		if err != nil {
			s.logger.Warn("fetch review", zap.String("url", rawURL), zap.Error(err))
			data.Error = msgFetchFailed + err.Error()
			s.render(w, fetchStatus(err), data)
			return
		}
		review = domain.Review{Text: page.Text, Source: domain.SourceURL, URL: page.URL}
		data.Text = page.Text
	}

	res, err := s.analyzer.Analyze(r.Context(), review.Text)
	switch {
	case errors.Is(err, analyzer.ErrEmptyInput):
		data.Warning = msgEmptyInput
		s.render(w, http.StatusUnprocessableEntity, data)
		return
	case err != nil:
		data.Error = msgPredictError + err.Error()
		s.render(w, analyzeStatus(err), data)
		return
	}

	data.Result = res
	data.Chart = newBarChart(res.Breakdown)
	data.Prediction, data.Similar = s.record(review, res)

	s.render(w, http.StatusOK, data)
}

func (s *Server) render(w http.ResponseWriter, status int, data *dashboardData) {
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		s.logger.Error("render dashboard", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
