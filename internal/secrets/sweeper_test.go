package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeper(t *testing.T) {
	ctx := context.Background()

	t.Run("it removes expired secrets", func(t *testing.T) {
		engine, st, clk := newTestEngine()

		_, err := engine.Share(ctx, []byte("short"), []byte("p"), time.Second)
		require.NoError(t, err)
		_, err = engine.Share(ctx, []byte("long"), []byte("p"), time.Hour)
		require.NoError(t, err)

		sweeper, err := NewSweeper(ctx, st, clk, "@every 1h")
		require.NoError(t, err)

		removed, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		require.Zero(t, removed)

		clk.Advance(time.Minute)

		removed, err = sweeper.Sweep(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, removed)
		require.Equal(t, 1, st.Len())
	})

	t.Run("it rejects an invalid schedule", func(t *testing.T) {
		_, st, clk := newTestEngine()

		_, err := NewSweeper(ctx, st, clk, "every now and then")
		require.Error(t, err)
	})

	t.Run("it runs on schedule", func(t *testing.T) {
		engine, st, clk := newTestEngine()

		_, err := engine.Share(ctx, []byte("short"), []byte("p"), time.Second)
		require.NoError(t, err)
		clk.Advance(time.Minute)

		sweeper, err := NewSweeper(ctx, st, clk, "@every 1s")
		require.NoError(t, err)
		sweeper.Start()
		defer sweeper.Stop()

		require.Eventually(t, func() bool { return st.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
	})
}
