package page

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	VotingPath     = "/voting"
	VotingDataPath = "/voting/__data.json"
)

// VotingPage runs the voting loader on every navigation and renders its
// result. Loader failures end at a generic error view.
type VotingPage struct {
	fetch   Fetcher
	logger  logrus.FieldLogger
	metrics *metrics.LoaderMetrics
	tmpl    map[string]*template.Template
}

// NewVotingPage builds the page. origin is the base URL /vote is resolved
// against; when empty, /vote is served in process by the router the page
// is mounted on.
func NewVotingPage(origin string, client Fetcher, logger logrus.FieldLogger, m *metrics.LoaderMetrics) (*VotingPage, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	p := &VotingPage{logger: logger, metrics: m, tmpl: tmpl}
	if origin != "" {
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		if p.fetch, err = NewOriginFetcher(origin, client); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Routes mounts the page. r must be the router that also serves /vote
// when no origin was configured.
func (p *VotingPage) Routes(r chi.Router) {
	if p.fetch == nil {
		p.fetch = NewHandlerFetcher(r)
	}
	r.Get(VotingPath, p.serveHTML)
	r.Get(VotingDataPath, p.serveData)
}

func (p *VotingPage) load(ctx context.Context) (*VotingData, error) {
	if p.fetch == nil {
		return nil, errors.New("voting page is not mounted")
	}

	start := time.Now()
	data, err := LoadVoting(ctx, LoadEvent{Fetch: p.fetch})
	p.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Loads.WithLabelValues("error").Inc()
		return nil, err
	}
	p.metrics.Loads.WithLabelValues("ok").Inc()
	return data, nil
}

func (p *VotingPage) serveHTML(w http.ResponseWriter, r *http.Request) {
	data, err := p.load(r.Context())
	if err != nil {
		p.logger.WithError(err).WithField("path", r.URL.Path).Error("voting page load failed")
		p.render(w, http.StatusInternalServerError, "error", errorView{Status: http.StatusInternalServerError, Message: "Internal Error"})
		return
	}
	p.render(w, http.StatusOK, "voting", newVotingView(data.Votes))
}

func (p *VotingPage) serveData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	data, err := p.load(r.Context())
	if err != nil {
		p.logger.WithError(err).WithField("path", r.URL.Path).Error("voting data load failed")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Internal Error"})
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		p.logger.WithError(err).Warn("failed to encode voting data")
	}
}

func (p *VotingPage) render(w http.ResponseWriter, status int, name string, view any) {
	var buf bytes.Buffer
	if err := p.tmpl[name].ExecuteTemplate(&buf, "layout", view); err != nil {
		p.logger.WithError(err).WithField("template", name).Error("failed to render page")
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
