package janitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalil0321/stapply/internal/janitor"
)

type sweepStore struct {
	mu         sync.Mutex
	staleAges  []time.Duration
	retentions []time.Duration
}

func (s *sweepStore) FailStale(_ context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleAges = append(s.staleAges, maxAge)
	return 1, nil
}

func (s *sweepStore) PurgeOlderThan(_ context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retentions = append(s.retentions, retention)
	return 0, nil
}

func TestJanitorSweepsImmediatelyOnStart(t *testing.T) {
	st := &sweepStore{}
	j := janitor.New(st, nil, time.Hour, 30*time.Minute, 7*24*time.Hour)
	require.NoError(t, j.Start())
	defer j.Stop()

	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.staleAges) == 1 && len(st.retentions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Equal(t, 30*time.Minute, st.staleAges[0])
	require.Equal(t, 7*24*time.Hour, st.retentions[0])
}

func TestJanitorSkipsPurgeWithoutRetention(t *testing.T) {
	st := &sweepStore{}
	j := janitor.New(st, nil, time.Hour, 30*time.Minute, 0)
	require.NoError(t, j.Start())
	defer j.Stop()

	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.staleAges) == 1
	}, 2*time.Second, 10*time.Millisecond)

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Empty(t, st.retentions)
}
