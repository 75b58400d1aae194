package handler

import (
	"context"
	"errors"
	"net/http"

	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/metrics"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

const (
	msgSaved   = "Contact saved successfully"
	msgFailure = "Something went wrong"
	msgTooBig  = "request body too large"

	// DefaultMaxBodyBytes matches the limit the website has always been served with.
	DefaultMaxBodyBytes = 100 << 10
)

// Submitter accepts new contact submissions.
type Submitter interface {
	Submit(ctx context.Context, nc intake.NewContact) (intake.Contact, error)
}

// ContactConfig tunes the contact endpoint.
type ContactConfig struct {
	MaxBodyBytes int64

	// LegacyErrorStatus answers every failure with 500, as the first version
	// of the website backend did. Response bodies are unaffected.
	LegacyErrorStatus bool
}

type ContactHandler struct {
	service Submitter
	log     *otelzap.SugaredLogger
	cfg     ContactConfig
}

func NewContactHandler(service Submitter, log *otelzap.SugaredLogger, cfg ContactConfig) *ContactHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &ContactHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

func (ch ContactHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var nc intake.NewContact

	if err := decode(rw, r, ch.cfg.MaxBodyBytes, &nc); err != nil {
		ch.log.Ctx(ctx).Infow("Create", "status", "undecodable body", "error", err.Error())
		metrics.RecordContactSubmission(metrics.OutcomeInvalid)

		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondErr(ctx, rw, ch.status(http.StatusRequestEntityTooLarge), msgTooBig)
			return
		}
		respondErr(ctx, rw, ch.status(http.StatusBadRequest), describeDecodeError(err))
		return
	}

	c, err := ch.service.Submit(ctx, nc)
	if err != nil {
		var (
			ve *intake.ValidationError
			pe *intake.PersistenceError
		)
		switch {
		case errors.As(err, &ve):
			ch.log.Ctx(ctx).Infow("Create", "status", "rejected", "error", err.Error())
			respondErr(ctx, rw, ch.status(http.StatusBadRequest), ve.Error())
		case errors.As(err, &pe):
			ch.log.Ctx(ctx).Errorw("Create", "error", err.Error())
			respondErr(ctx, rw, ch.status(http.StatusServiceUnavailable), msgFailure)
		default:
			ch.log.Ctx(ctx).Errorw("Create", "error", err.Error())
			respondErr(ctx, rw, http.StatusInternalServerError, msgFailure)
		}
		return
	}

	ch.log.Ctx(ctx).Infow("Create", "status", "saved", "id", c.ID, "inquiryType", c.InquiryType)
	respond(ctx, rw, http.StatusOK, map[string]string{"message": msgSaved})
}

func (ch ContactHandler) status(code int) int {
	if ch.cfg.LegacyErrorStatus {
		return http.StatusInternalServerError
	}
	return code
}
