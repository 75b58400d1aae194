package intake

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phbpx/contact-intake/metrics"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultNotifyTimeout = 10 * time.Second

// Service validates contact submissions and writes them to a Store.
type Service struct {
	store         Store
	notifier      Notifier
	log           *otelzap.SugaredLogger
	validate      *validator.Validate
	now           func() time.Time
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier makes the service announce every saved contact.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock replaces time.Now as the source of CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNotifyTimeout bounds a single notification attempt.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.notifyTimeout = d
	}
}

// NewService constructs a Service on top of store.
func NewService(store Store, log *otelzap.SugaredLogger, opts ...Option) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Postgres refuses text containing NUL, so it is a client error here
	// rather than a failed write later.
	validate.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})

	s := &Service{
		store:         store,
		log:           log,
		validate:      validate,
		now:           time.Now,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates nc and persists it as a new Contact. A *ValidationError
// means the store was never called; a *PersistenceError means the write was
// attempted and did not complete.
func (s *Service) Submit(ctx context.Context, nc NewContact) (Contact, error) {
	ctx, span := otel.Tracer("intake").Start(ctx, "intake.Submit")
	defer span.End()

	nc = nc.trimmed()
	if err := s.check(nc); err != nil {
		metrics.RecordContactSubmission(metrics.OutcomeInvalid)
		span.SetStatus(codes.Error, "validation")
		return Contact{}, err
	}

	c := Contact{
		ID:            uuid.NewString(),
		Name:          nc.Name,
		Email:         nc.Email,
		Organization:  nc.Organization,
		Role:          nc.Role,
		InquiryType:   nc.InquiryType,
		Message:       nc.Message,
		AgreedToTerms: *nc.AgreedToTerms,
		CreatedAt:     s.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("contact.id", c.ID),
		attribute.String("contact.inquiry_type", c.InquiryType),
	)

	if err := s.store.Save(ctx, c); err != nil {
		metrics.RecordContactSubmission(metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence")
		return Contact{}, &PersistenceError{Err: err}
	}

	metrics.RecordContactSubmission(metrics.OutcomeSaved)
	s.notify(c)

	return c, nil
}

// StatusCheck reports whether the underlying store is reachable.
func (s *Service) StatusCheck(ctx context.Context) error {
	return s.store.StatusCheck(ctx)
}

// Wait blocks until every in-flight notification has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) check(nc NewContact) error {
	err := s.validate.Struct(nc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{}
	}

	ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		reason := "is invalid"
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "nonul":
			reason = "must not contain NUL characters"
		}
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Reason: reason})
	}
	return ve
}

func (s *Service) notify(c Contact) {
	if s.notifier == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, c); err != nil {
			s.log.Ctx(ctx).Warnw("notify", "id", c.ID, "error", err.Error())
			return
		}
		s.log.Ctx(ctx).Debugw("notify", "id", c.ID, "status", "sent")
	}()
}
