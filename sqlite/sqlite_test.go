package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "contacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_Save(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.StatusCheck(ctx))

	c := intake.Contact{
		ID:            uuid.NewString(),
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		InquiryType:   "vr-kit",
		Message:       "Pricing for ten kits?",
		AgreedToTerms: true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, c))
	assert.Error(t, s.Save(ctx, c), "the same id cannot be written twice")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_WithService(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	svc := intake.NewService(s, otelzap.New(zap.NewNop()).Sugar())

	agreed := true
	nc := intake.NewContact{
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		InquiryType:   "general",
		Message:       "Hello",
		AgreedToTerms: &agreed,
	}
	_, err := svc.Submit(ctx, nc)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, nc)
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestStore_ClosedDatabase(t *testing.T) {
	ctx := context.Background()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "contacts.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Close())

	assert.Error(t, s.StatusCheck(ctx))
	assert.Error(t, s.Save(ctx, intake.Contact{ID: uuid.NewString(), CreatedAt: time.Now()}))
}
