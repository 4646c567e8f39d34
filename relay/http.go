package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxMessageBody caps inbound message size (1 MiB).
const maxMessageBody int64 = 1 << 20

// NewHTTP returns the HTTP ingress for the dispatcher:
//
//	POST /v1/message  — broadcast a message body to all pages
//	GET  /healthz     — liveness
func NewHTTP(d *Dispatcher, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/v1/message", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxMessageBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		var probe struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(body, &probe); err != nil || probe.Reason == "" {
			http.Error(w, "message must be JSON with a reason field", http.StatusBadRequest)
			return
		}

		if err := d.Broadcast(req.Context(), body); err != nil {
			logger.Warn("relay: broadcast from HTTP failed", "reason", probe.Reason, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "delivered", "reason": probe.Reason})
	})

	return r
}
