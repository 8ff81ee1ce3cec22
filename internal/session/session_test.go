package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func managers(t *testing.T) map[string]Manager {
	t.Helper()

	bm, err := NewBadgerManagerInMemory(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bm.Close() })

	return map[string]Manager{
		"memory": NewMemoryManager(),
		"badger": bm,
	}
}

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			got, err := m.Get(ctx, 42)
			require.NoError(t, err)
			require.Nil(t, got)
			require.False(t, m.InProgress(ctx, 42))

			s := &Session{
				UserID:   42,
				Username: "driver",
				VIN:      "WVWZZZ1JZXW000001",
				Step:     StepGetParts,
			}
			require.NoError(t, m.Save(ctx, s))

			got, err = m.Get(ctx, 42)
			require.NoError(t, err)
			require.Equal(t, s, got)
			require.True(t, m.InProgress(ctx, 42))

			require.NoError(t, m.Clear(ctx, 42))
			got, err = m.Get(ctx, 42)
			require.NoError(t, err)
			require.Nil(t, got)
		})
	}
}

func TestSaveRequiresUserID(t *testing.T) {
	ctx := context.Background()

	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			require.Error(t, m.Save(ctx, nil))
			require.Error(t, m.Save(ctx, &Session{Step: StepGetVin}))
		})
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()

	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Clear(ctx, 777))
			require.NoError(t, m.Clear(ctx, 777))
		})
	}
}

func TestSaveCopiesState(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager()

	s := &Session{UserID: 7, Step: StepGetContact}
	require.NoError(t, m.Save(ctx, s))
	s.Contact = "mutated-after-save"

	got, err := m.Get(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, got.Contact)
}
