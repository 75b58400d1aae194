package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndDown(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.Save(ctx, intake.Contact{ID: "a", Name: "Jane", CreatedAt: time.Now()}))
	assert.Error(t, s.Save(ctx, intake.Contact{ID: "a"}), "duplicate id must be rejected")

	s.SetDown(true)
	assert.ErrorIs(t, s.Save(ctx, intake.Contact{ID: "b"}), memory.ErrUnavailable)
	assert.ErrorIs(t, s.StatusCheck(ctx), memory.ErrUnavailable)

	s.SetDown(false)
	require.NoError(t, s.Save(ctx, intake.Contact{ID: "b"}))
	require.NoError(t, s.StatusCheck(ctx))

	got := s.Contacts()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.New()
	assert.ErrorIs(t, s.Save(ctx, intake.Contact{ID: "a"}), context.Canceled)
	assert.Zero(t, s.Len())
}

func TestStore_ConcurrentSaves(t *testing.T) {
	s := memory.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			assert.NoError(t, s.Save(context.Background(), intake.Contact{ID: id}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
