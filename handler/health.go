package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// StatusChecker reports whether a dependency is reachable.
type StatusChecker interface {
	StatusCheck(ctx context.Context) error
}

type HealthHandler struct {
	checker StatusChecker
	log     *otelzap.SugaredLogger
	timeout time.Duration
}

func NewHealthHandler(checker StatusChecker, log *otelzap.SugaredLogger, timeout time.Duration) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		log:     log,
		timeout: timeout,
	}
}

// Liveness answers as long as the process can serve HTTP.
func (hh HealthHandler) Liveness(rw http.ResponseWriter, r *http.Request) {
	respond(r.Context(), rw, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness answers 200 only when the store is reachable.
func (hh HealthHandler) Readiness(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if hh.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hh.timeout)
		defer cancel()
	}

	if err := hh.checker.StatusCheck(ctx); err != nil {
		hh.log.Ctx(ctx).Warnw("Readiness", "error", err.Error())
		respond(ctx, rw, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	respond(ctx, rw, http.StatusOK, map[string]string{"status": "ok"})
}
