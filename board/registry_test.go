package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/domain"
)

func TestMountStartsEmptyBoard(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Mount("ada@example.com")
	require.NotEmpty(t, id)

	snap, err := r.Snapshot("ada@example.com", id)
	require.NoError(t, err)
	assert.Empty(t, snap.Pending)
	assert.Empty(t, snap.Completed)
	assert.Empty(t, snap.Done)

	other := r.Mount("ada@example.com")
	assert.NotEqual(t, id, other, "each mount is a fresh board")
	assert.Equal(t, 2, r.Len())
}

func TestDoIsScopedToOwner(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Mount("ada@example.com")

	err := r.Do("bob@example.com", id, func(b *domain.Board) { b.CreateTask("x", "") })
	assert.ErrorIs(t, err, ErrBoardNotFound)
	_, err = r.Snapshot("bob@example.com", id)
	assert.ErrorIs(t, err, ErrBoardNotFound)
	assert.False(t, r.Unmount("bob@example.com", id))

	err = r.Do("ada@example.com", "missing", func(*domain.Board) {})
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestUnmountDiscardsBoard(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Mount("ada@example.com")
	require.NoError(t, r.Do("ada@example.com", id, func(b *domain.Board) { b.CreateTask("A", "") }))

	ch, _, err := r.Subscribe("ada@example.com", id)
	require.NoError(t, err)

	assert.True(t, r.Unmount("ada@example.com", id))
	assert.False(t, r.Unmount("ada@example.com", id))

	_, ok := <-ch
	assert.False(t, ok, "subscribers see the board go away")

	_, err = r.Snapshot("ada@example.com", id)
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestDoNotifiesSubscribers(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Mount("ada@example.com")

	ch, unsubscribe, err := r.Subscribe("ada@example.com", id)
	require.NoError(t, err)

	require.NoError(t, r.Do("ada@example.com", id, func(b *domain.Board) { b.CreateTask("A", "") }))
	require.NoError(t, r.Do("ada@example.com", id, func(b *domain.Board) { b.CreateTask("B", "") }))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}

	unsubscribe()
	require.NoError(t, r.Do("ada@example.com", id, func(b *domain.Board) { b.CreateTask("C", "") }))
	select {
	case <-ch:
		t.Fatal("notified after unsubscribe")
	default:
	}

	snap, err := r.Snapshot("ada@example.com", id)
	require.NoError(t, err)
	assert.Len(t, snap.Pending, 3)
}

func TestDoSerializesMutations(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Mount("ada@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Do("ada@example.com", id, func(b *domain.Board) {
				tid := b.CreateTask("t", "")
				b.MoveTask(tid, domain.CategoryPending, domain.CategoryDone)
			})
		}()
	}
	wg.Wait()

	snap, err := r.Snapshot("ada@example.com", id)
	require.NoError(t, err)
	assert.Empty(t, snap.Pending)
	assert.Len(t, snap.Done, 50)
}

func TestSweepDropsIdleBoards(t *testing.T) {
	r := NewRegistry(time.Hour)
	start := time.Now()
	r.now = func() time.Time { return start }

	idle := r.Mount("ada@example.com")
	watched := r.Mount("ada@example.com")
	_, _, err := r.Subscribe("ada@example.com", watched)
	require.NoError(t, err)

	r.now = func() time.Time { return start.Add(50 * time.Minute) }
	active := r.Mount("bob@example.com")

	assert.Equal(t, 0, r.Sweep(start.Add(30*time.Minute)))
	assert.Equal(t, 1, r.Sweep(start.Add(90*time.Minute)))

	_, err = r.Snapshot("ada@example.com", idle)
	assert.ErrorIs(t, err, ErrBoardNotFound)
	_, err = r.Snapshot("ada@example.com", watched)
	assert.NoError(t, err)
	_, err = r.Snapshot("bob@example.com", active)
	assert.NoError(t, err)
}

func TestSweepDisabled(t *testing.T) {
	r := NewRegistry(0)
	r.Mount("ada@example.com")
	assert.Equal(t, 0, r.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, r.Len())
}

func TestDropOwner(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Mount("ada@example.com")
	r.Mount("ada@example.com")
	keep := r.Mount("bob@example.com")

	assert.Equal(t, 2, r.DropOwner("ada@example.com"))
	assert.Equal(t, 1, r.Len())
	_, err := r.Snapshot("bob@example.com", keep)
	assert.NoError(t, err)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	r := NewRegistry(time.Millisecond)
	r.Mount("ada@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
