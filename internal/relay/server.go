package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// maxBodyBytes bounds request bodies; envelopes and bundles are small.
const maxBodyBytes = 1 << 20

// PushRequest is the body of POST /v1/envelopes/{peer}.
type PushRequest struct {
	From     domain.PeerID   `json:"from"`
	Envelope domain.Envelope `json:"envelope"`
}

// PushResponse is returned for an accepted envelope.
type PushResponse struct {
	Cursor string `json:"cursor"`
}

// PullResponse is the body of GET /v1/envelopes/{peer}.
type PullResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter exposes hub over HTTP. gatherer backs /metrics and may be nil to
// leave the endpoint out.
func NewRouter(hub *Hub, metrics *Metrics, gatherer prometheus.Gatherer, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(metrics.middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	h := &handler{hub: hub, log: logger}

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Put("/bundles/{peer}", h.publishBundle)
		r.Get("/bundles/{peer}", h.fetchBundle)
		r.Post("/envelopes/{peer}", h.pushEnvelope)
		r.Get("/envelopes/{peer}", h.pullEnvelopes)
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

type handler struct {
	hub *Hub
	log zerolog.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) publishBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.PreKeyBundle
	if !decode(w, r, &b) {
		return
	}
	if err := h.hub.PublishBundle(r.Context(), peerParam(r), b); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) fetchBundle(w http.ResponseWriter, r *http.Request) {
	b, err := h.hub.FetchPeerBundle(r.Context(), peerParam(r))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) pushEnvelope(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Envelope.Ciphertext) == 0 || len(req.Envelope.Nonce) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("envelope needs ciphertext and nonce"))
		return
	}
	cursor, err := h.hub.Push(req.From, peerParam(r), req.Envelope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, PushResponse{Cursor: cursor})
}

func (h *handler) pullEnvelopes(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPullLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	out := h.hub.Pull(peerParam(r), r.URL.Query().Get("since"), limit)
	writeJSON(w, http.StatusOK, PullResponse{Deliveries: out})
}

func peerParam(r *http.Request) domain.PeerID {
	return domain.PeerID(chi.URLParam(r, "peer"))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
