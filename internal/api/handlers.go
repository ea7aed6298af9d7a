package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/auth"
	"voicebot/agent/internal/config"
	"voicebot/agent/internal/health"
	"voicebot/agent/internal/report"
	"voicebot/agent/internal/session"
)

type Handlers struct {
	cfg      config.Config
	registry *session.Registry
	reports  *report.Repository
	log      *logrus.Entry
}

func NewHandlers(cfg config.Config, reg *session.Registry, reports *report.Repository, log *logrus.Entry) *Handlers {
	return &Handlers{cfg: cfg, registry: reg, reports: reports, log: log}
}

// HandleCreateCall registers a new call and hands back the websocket
// coordinates.
func (h *Handlers) HandleCreateCall(w http.ResponseWriter, r *http.Request) {
	sess := h.registry.Create()

	token := ""
	if h.cfg.WS.TokenSecret != "" {
		exp := time.Now().Add(time.Duration(h.cfg.WS.TokenExpMin) * time.Minute).Unix()
		token = auth.MintCallToken(h.cfg.WS.TokenSecret, sess.ID, exp)
	}

	h.log.WithField("call_id", sess.ID).Info("call created")
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":  sess.ID,
		"ws_path":  "/ws/voice?call_id=" + sess.ID,
		"token":    token,
		"greeting": h.cfg.Call.Greeting,
	})
}

// HandleGetCall returns a point-in-time copy of the live session. The
// copy keeps the encoder off the slices the connection task appends to.
func (h *Handlers) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.registry.Get(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// HandleGetReport serves the post-call report. A call still live in the
// registry has no report yet.
func (h *Handlers) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if sess, err := h.registry.Get(id); err == nil && !sess.Terminal() {
		http.Error(w, "call still active", http.StatusConflict)
		return
	}
	if h.reports == nil {
		http.Error(w, "report store unavailable", http.StatusServiceUnavailable)
		return
	}
	rep, err := h.reports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		h.log.WithError(err).Error("report lookup failed")
		http.Error(w, "report lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleReady runs the dependency probes behind readiness.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	status := health.CheckAll(ctx, h.cfg)
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
