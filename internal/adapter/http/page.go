package http

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/goccy/go-json"
)

// Converter produces a Fahrenheit value for a Celsius input. It never fails.
type Converter interface {
	Convert(ctx context.Context, celsius float64) domain.Conversion
}

// HistoryStore loads and saves the requesting client's history.
type HistoryStore interface {
	History(ctx context.Context) domain.History
	SaveHistory(ctx context.Context, h domain.History) error
}

// PageContext is everything the conversion page renders.
type PageContext struct {
	Resultado    *float64              `json:"resultado"`
	LossJSON     string                `json:"loss_json"`
	History      []domain.HistoryEntry `json:"history"`
	UsedFallback bool                  `json:"used_fallback"`
}

// Page serves the single conversion form.
//
//	GET                      render history and loss chart
//	POST clear_history=<any> empty the history, ignore valor
//	POST valor=<number>      convert, append to history, render the result
//	POST valor=<garbage>     render as if nothing was submitted
type Page struct {
	converter Converter
	history   HistoryStore
	tmpl      *template.Template
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewPage creates the page handler and parses its template.
func NewPage(converter Converter, history HistoryStore, logger *slog.Logger, metrics *observability.Metrics) (*Page, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Page{
		converter: converter,
		history:   history,
		tmpl:      tmpl,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history := p.history.History(ctx)
	var view PageContext

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			p.logger.DebugContext(ctx, "unreadable form body", "error", err)
		}

		switch celsius, ok := parseValor(r.PostForm.Get("valor")); {
		case r.PostForm.Get("clear_history") != "":
			history = domain.History{}
			p.metrics.HistoryClears.Inc()
			p.save(ctx, history)
		case ok:
			c := p.converter.Convert(ctx, celsius)
			f := c.Fahrenheit
			view.Resultado = &f
			view.UsedFallback = c.UsedFallback
			history = history.Append(c.Entry())
			p.save(ctx, history)
		default:
			p.metrics.InvalidInputs.Inc()
		}
	}

	view.LossJSON = lossJSON()
	view.History = history.NewestFirst()
	p.render(w, r, view)
}

func (p *Page) save(ctx context.Context, h domain.History) {
	if err := p.history.SaveHistory(ctx, h); err != nil {
		p.logger.WarnContext(ctx, "save session history failed", "error", err)
	}
}

func (p *Page) render(w http.ResponseWriter, r *http.Request, view PageContext) {
	var buf bytes.Buffer
	if wantsJSON(r) {
		if err := json.NewEncoder(&buf).Encode(view); err != nil {
			p.logger.ErrorContext(r.Context(), "encode page context", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}

	if err := p.tmpl.ExecuteTemplate(&buf, "index.html", newHTMLView(view)); err != nil {
		p.logger.ErrorContext(r.Context(), "render page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// parseValor accepts any finite decimal number, ignoring surrounding space.
// Hex floats are rejected, as is any value whose Fahrenheit equivalent would
// overflow.
func parseValor(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	digits := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) || !finite(domain.Fallback(v)) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func lossJSON() string {
	data, err := json.Marshal(domain.LossCurve())
	if err != nil {
		return "[]"
	}
	return string(data)
}

// wantsJSON reports whether the Accept header ranks application/json above text/html.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}

	var jsonQ, htmlQ float64
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		switch mediaType {
		case "application/json":
			jsonQ = max(jsonQ, q)
		case "text/html", "text/*", "*/*":
			htmlQ = max(htmlQ, q)
		}
	}
	return jsonQ > 0 && jsonQ > htmlQ
}
