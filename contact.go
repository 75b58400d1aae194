//go:generate mockgen -source=contact.go -destination=mocks/intake.go -package=mocks

package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned by optional collaborators that were left
// without the settings they need.
var ErrNotConfigured = errors.New("not configured")

// Contact is a persisted contact form submission.
type Contact struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Organization  string    `json:"organization"`
	Role          string    `json:"role"`
	InquiryType   string    `json:"inquiryType"`
	Message       string    `json:"message"`
	AgreedToTerms bool      `json:"agreedToTerms"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewContact is what a visitor submits. Fields outside this set are ignored
// when decoding, and there is no way to supply ID or CreatedAt.
type NewContact struct {
	Name          string `json:"name" validate:"required,nonul"`
	Email         string `json:"email" validate:"required,nonul"`
	Organization  string `json:"organization" validate:"nonul"`
	Role          string `json:"role" validate:"nonul"`
	InquiryType   string `json:"inquiryType" validate:"required,nonul"`
	Message       string `json:"message" validate:"required,nonul"`
	AgreedToTerms *bool  `json:"agreedToTerms" validate:"required"`
}

func (nc NewContact) trimmed() NewContact {
	nc.Name = strings.TrimSpace(nc.Name)
	nc.Email = strings.TrimSpace(nc.Email)
	nc.Organization = strings.TrimSpace(nc.Organization)
	nc.Role = strings.TrimSpace(nc.Role)
	nc.InquiryType = strings.TrimSpace(nc.InquiryType)
	nc.Message = strings.TrimSpace(nc.Message)
	return nc
}

// Store durably holds contacts. Implementations must not retry a failed Save.
type Store interface {
	Save(ctx context.Context, c Contact) error
	StatusCheck(ctx context.Context) error
}

// Notifier is told about every saved contact.
type Notifier interface {
	Notify(ctx context.Context, c Contact) error
}

// FieldError describes one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (fe FieldError) String() string {
	return fe.Field + " " + fe.Reason
}

// ValidationError is returned when a submission is rejected before any
// store interaction.
type ValidationError struct {
	Fields []FieldError
}

func (ve *ValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "invalid contact submission"
	}
	parts := make([]string, len(ve.Fields))
	for i, fe := range ve.Fields {
		parts[i] = fe.String()
	}
	return strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

// PersistenceError is returned when a validated contact could not be written.
type PersistenceError struct {
	Err error
}

func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("saving contact: %v", pe.Err)
}

func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}
