package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunner(t *testing.T) {
	runner := NewInMemory()

	t.Run("propagates callback errors", func(t *testing.T) {
		boom := errors.New("boom")
		err := runner.RunInTx(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	})

	t.Run("nested calls do not deadlock", func(t *testing.T) {
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
	})

	t.Run("serialises concurrent callers", func(t *testing.T) {
		var wg sync.WaitGroup
		counter := 0
		for range 50 {
			wg.Go(func() {
				_ = runner.RunInTx(context.Background(), func(context.Context) error {
					counter++
					return nil
				})
			})
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})
}

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
