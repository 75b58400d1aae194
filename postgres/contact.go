package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/pkg/database"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// ErrRejected is returned when Postgres refuses a row because of a
// constraint.
var ErrRejected = errors.New("contact rejected by database constraint")

type dbContact struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Email         string    `db:"email"`
	Organization  string    `db:"organization"`
	Role          string    `db:"role"`
	InquiryType   string    `db:"inquiry_type"`
	Message       string    `db:"message"`
	AgreedToTerms bool      `db:"agreed_to_terms"`
	CreatedAt     time.Time `db:"created_at"`
}

func toDBContact(c intake.Contact) dbContact {
	return dbContact{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Organization:  c.Organization,
		Role:          c.Role,
		InquiryType:   c.InquiryType,
		Message:       c.Message,
		AgreedToTerms: c.AgreedToTerms,
		CreatedAt:     c.CreatedAt,
	}
}

type ContactStore struct {
	db *sqlx.DB
}

func NewContactStore(db *sqlx.DB) *ContactStore {
	return &ContactStore{
		db: db,
	}
}

const insertContact = `
	INSERT INTO contacts (
		id, name, email, organization, role, inquiry_type, message, agreed_to_terms, created_at
	) VALUES (
		:id, :name, :email, :organization, :role, :inquiry_type, :message, :agreed_to_terms, :created_at
	)`

func (cs *ContactStore) Save(ctx context.Context, c intake.Contact) error {
	tx, err := cs.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx, insertContact, toDBContact(c)); err != nil {
		tx.Rollback()
		return mapError(err)
	}

	return tx.Commit()
}

// mapError turns constraint violations into ErrRejected.
func mapError(err error) error {
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		switch pqerr.Code {
		case uniqueViolation, checkViolation:
			return fmt.Errorf("%w: %s", ErrRejected, pqerr.Constraint)
		}
	}
	return err
}

func (cs *ContactStore) StatusCheck(ctx context.Context) error {
	return database.StatusCheck(ctx, cs.db)
}

func (cs *ContactStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, cs.db)
}

func (cs *ContactStore) Close() error {
	return cs.db.Close()
}
