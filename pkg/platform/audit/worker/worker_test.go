package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/audit/store/memory"
	"grievance/pkg/platform/tx"
)

type recordingProducer struct {
	mu     sync.Mutex
	keys   []string
	failOn int
}

func (p *recordingProducer) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn > 0 && len(p.keys)+1 == p.failOn {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func seed(t *testing.T, store *memory.InMemoryStore, subjects ...string) {
	t.Helper()
	for _, s := range subjects {
		require.NoError(t, store.Append(context.Background(), audit.Prepare(audit.Event{
			Subject: s,
			Action:  string(audit.EventComplaintCreated),
		})))
	}
}

func TestRelayOnce_PublishesInOrder(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, "CMP-2025-000001", "CMP-2025-000002")
	producer := &recordingProducer{}
	w := NewWorker(store, producer, tx.NewInMemory())

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"CMP-2025-000001", "CMP-2025-000002"}, producer.keys)

	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not relayed twice")
}

func TestRelayOnce_StopsAtFirstFailure(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, "a", "b", "c")
	producer := &recordingProducer{failOn: 2}
	w := NewWorker(store, producer, tx.NewInMemory())

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "b", remaining[0].AggregateID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(memory.NewInMemoryStore(), &recordingProducer{}, tx.NewInMemory())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}
