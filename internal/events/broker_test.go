package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalil0321/stapply/internal/model"
)

func snapshotFor(id uuid.UUID, status model.SearchStatus) *model.Snapshot {
	return &model.Snapshot{ID: id, Status: status, Valid: true}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	s1 := b.Subscribe(id)
	s2 := b.Subscribe(id)
	defer s1.Cancel()
	defer s2.Cancel()

	snap := snapshotFor(id, model.SearchQuerying)
	b.Publish(id, snap)

	require.Equal(t, snap, <-s1.Updates())
	require.Equal(t, snap, <-s2.Updates())
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	assert.False(t, b.HasSubscribers(id))
	// Must not panic or retain anything.
	b.Publish(id, snapshotFor(id, model.SearchDone))
	assert.False(t, b.HasSubscribers(id))
}

func TestLastCancelRemovesTopic(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	s1 := b.Subscribe(id)
	s2 := b.Subscribe(id)
	require.True(t, b.HasSubscribers(id))

	s1.Cancel()
	assert.True(t, b.HasSubscribers(id), "one subscriber should remain")

	s2.Cancel()
	assert.False(t, b.HasSubscribers(id), "topic should be gone after last cancel")

	// Re-subscription lazily recreates the entry.
	s3 := b.Subscribe(id)
	defer s3.Cancel()
	assert.True(t, b.HasSubscribers(id))
}

func TestCancelIsIdempotent(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	s := b.Subscribe(id)
	s.Cancel()
	assert.NotPanics(t, s.Cancel)
}

func TestCloseTopicEndsAllFeeds(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	s := b.Subscribe(id)
	final := snapshotFor(id, model.SearchDone)
	b.Publish(id, final)
	b.CloseTopic(id)

	// The buffered terminal snapshot is still delivered, then the
	// channel closes.
	got, ok := <-s.Updates()
	require.True(t, ok)
	assert.Equal(t, final, got)

	_, ok = <-s.Updates()
	assert.False(t, ok, "channel should be closed after CloseTopic")

	// Cancel after CloseTopic must not double-close.
	assert.NotPanics(t, s.Cancel)
}

func TestSlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	b := NewBroker()
	id := uuid.New()

	s := b.Subscribe(id)
	defer s.Cancel()

	// Overflow the buffer without draining; the oldest snapshots are
	// dropped but the last published one must survive.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(id, snapshotFor(id, model.SearchDataValidation))
	}
	final := snapshotFor(id, model.SearchDone)
	b.Publish(id, final)

	var last *model.Snapshot
	for {
		select {
		case snap := <-s.Updates():
			last = snap
			continue
		default:
		}
		break
	}

	require.NotNil(t, last)
	assert.Equal(t, final, last)
}

func TestTopicsAreIndependent(t *testing.T) {
	b := NewBroker()
	idA, idB := uuid.New(), uuid.New()

	sa := b.Subscribe(idA)
	sb := b.Subscribe(idB)
	defer sa.Cancel()
	defer sb.Cancel()

	b.Publish(idA, snapshotFor(idA, model.SearchQuerying))

	require.Len(t, sa.Updates(), 1)
	assert.Len(t, sb.Updates(), 0)
}
