package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bizdash/internal/core"
	"bizdash/internal/dashboard"
	"bizdash/internal/export"
	"bizdash/internal/log"
	"bizdash/internal/services"
	"bizdash/internal/storage"
)

// chrome is what the layout needs on every page.
type chrome struct {
	Title  string
	Nav    []dashboard.Meta
	Active string
	User   *core.User
}

type overviewView struct {
	chrome
	Overview core.Overview
	Error    string
}

type pageView struct {
	chrome
	*dashboard.Model
	ExportsEnabled bool
	Exports        []storage.ExportJob
	// Edit is set when the form is prefilled for an existing project.
	Edit  *core.Project
	Error string
}

type pageCtxKey struct{}

func (s *Server) chrome(r *http.Request, title, active string) chrome {
	c := chrome{Title: title, Active: active}
	for _, p := range s.deps.Pages.All() {
		c.Nav = append(c.Nav, p.Meta())
	}
	if sess := viewer(r); sess.Token != "" {
		u := sess.User
		c.User = &u
	}
	return c
}

// withPage resolves the {page} URL parameter to a registered page.
func (s *Server) withPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.deps.Pages.Get(chi.URLParam(r, "page"))
		if err != nil {
			NotFoundError("Page not found").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), pageCtxKey{}, p)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldPage, p.Meta().Slug))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func pageFrom(r *http.Request) dashboard.Page {
	p, _ := r.Context().Value(pageCtxKey{}).(dashboard.Page)
	return p
}

func (s *Server) exportsEnabled() bool {
	return s.deps.Exports != nil && s.deps.Exports.Enabled()
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	var years []int
	for _, raw := range r.URL.Query()[dashboard.ParamYear] {
		if y, err := strconv.Atoi(raw); err == nil && y > 0 {
			years = append(years, y)
		}
	}

	ctx, cancel := remoteContext(r)
	defer cancel()

	view := overviewView{chrome: s.chrome(r, "Overview", "")}
	status := http.StatusOK
	ov, err := s.deps.Overview.Overview(ctx, years)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Overview failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeRemote)
		view.Error = "Could not load the overview. Try again later."
		status = http.StatusBadGateway
	}
	view.Overview = ov
	s.views.page(w, r, status, "overview.html", view)
}

// render runs the page pipeline for the signed-in viewer.
func (s *Server) render(r *http.Request) (*dashboard.Model, error) {
	ctx, cancel := remoteContext(r)
	defer cancel()
	m, err := pageFrom(r).Render(ctx, viewer(r).Token, r.URL.Query())
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Render failed",
			log.FieldOperation, log.OpRender, log.FieldError, err, log.FieldErrorType, log.ErrorTypeRemote)
	}
	return m, err
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	meta := pageFrom(r).Meta()
	view := pageView{chrome: s.chrome(r, meta.Title, meta.Slug), ExportsEnabled: s.exportsEnabled()}

	m, err := s.render(r)
	if err != nil {
		view.Error = "Could not load " + meta.Title + ". Try again later."
		view.Model = &dashboard.Model{Meta: meta, State: dashboard.ParseViewState(meta, r.URL.Query())}
		s.views.page(w, r, http.StatusBadGateway, "page.html", view)
		return
	}
	view.Model = m
	s.views.page(w, r, http.StatusOK, "page.html", view)
}

// writeTable renders the table partial and points the address bar at the
// canonical URL of the state shown.
func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, m *dashboard.Model) {
	w.Header().Set("HX-Push-Url", "/"+m.Meta.Slug+"?"+m.State.Encode())
	s.views.partial(w, r, http.StatusOK, "table", pageView{Model: m, ExportsEnabled: s.exportsEnabled()})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	m, err := s.render(r)
	if err != nil {
		BadGatewayError("Could not load records. Try again later.").Write(w)
		return
	}
	s.writeTable(w, r, m)
}

type chartPayload struct {
	Title string `json:"title"`
	Group string `json:"group"`
	Total string `json:"total"`
	Stale bool   `json:"stale"`
	Data  any    `json:"data"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	m, err := s.render(r)
	if err != nil {
		http.Error(w, `{"error":"remote failure"}`, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(chartPayload{
		Title: m.Meta.Title,
		Group: m.State.Group,
		Total: m.TotalLabel(),
		Stale: m.Stale,
		Data:  m.Chart,
	}); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Chart encode failed", log.FieldError, err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p := pageFrom(r)
	ctx, cancel := remoteContext(r)
	defer cancel()
	logger := log.FromContext(ctx)

	resp := NewHTMXResponse()
	switch err := p.Refresh(ctx); {
	case errors.Is(err, services.ErrSuperseded):
		logger.DebugContext(ctx, "Refresh superseded", log.FieldOperation, log.OpRefresh)
	case err != nil:
		logger.ErrorContext(ctx, "Refresh failed", log.FieldOperation, log.OpRefresh, log.FieldError, err)
		resp.TriggerErrorNotification("Refresh failed. Showing the last loaded data.")
	default:
		resp.TriggerSuccessNotification(p.Meta().Title + " refreshed")
	}

	m, err := s.render(r)
	if err != nil {
		BadGatewayError("Could not load records. Try again later.").Write(w)
		return
	}
	resp.Apply(w)
	s.writeTable(w, r, m)
}

func (s *Server) handleExportZip(w http.ResponseWriter, r *http.Request) {
	p := pageFrom(r)
	ctx, cancel := remoteContext(r)
	defer cancel()
	logger := log.FromContext(ctx)

	wb, err := p.Workbook(ctx, r.URL.Query())
	if err != nil {
		logger.ErrorContext(ctx, "Export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		BadGatewayError("Could not build the export.").Write(w)
		return
	}

	name := fmt.Sprintf("%s-%s.zip", p.Meta().Slug, time.Now().Format(core.DateLayout))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := export.NewZipWriter(w).Write(ctx, wb); err != nil {
		// Headers are gone; all that is left is to log.
		logger.ErrorContext(ctx, "Export write failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Export downloaded", log.FieldOperation, log.OpExport, "sheets", len(wb.Sheets))
}

func (s *Server) handleQueueExport(w http.ResponseWriter, r *http.Request) {
	if !s.exportsEnabled() {
		ErrorResponse(http.StatusServiceUnavailable, "Spreadsheet export is not configured.").Write(w)
		return
	}
	p := pageFrom(r)
	meta := p.Meta()
	query := dashboard.ParseViewState(meta, r.URL.Query()).Encode()

	ctx, cancel := remoteContext(r)
	defer cancel()
	job, err := s.deps.Exports.Queue(ctx, meta.Slug, query, viewer(r).User.Username)
	switch {
	case errors.Is(err, services.ErrExportsDisabled):
		ErrorResponse(http.StatusServiceUnavailable, "Spreadsheet export is not configured.").Write(w)
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Export queue failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		InternalServerError("Could not queue the export.").Write(w)
		return
	}

	NewHTMXResponse().
		Status(http.StatusAccepted).
		TriggerExportQueued(job.ID).
		TriggerSuccessNotification("Export queued").
		Write(w)
}

func (s *Server) handleRecentExports(w http.ResponseWriter, r *http.Request) {
	view := pageView{ExportsEnabled: s.exportsEnabled()}
	if view.ExportsEnabled {
		jobs, err := s.deps.Exports.Recent(r.Context(), recentExports)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Export log read failed", log.FieldError, err)
			InternalServerError("Could not read the export log.").Write(w)
			return
		}
		view.Exports = jobs
	}
	s.views.partial(w, r, http.StatusOK, "exports", view)
}
