package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// ErrBoardNotFound is returned for unknown ids and for boards held by another
// owner.
var ErrBoardNotFound = errors.New("board not found")

type entry struct {
	owner string

	mu       sync.Mutex
	board    *domain.Board
	lastUsed time.Time
	subs     map[chan struct{}]struct{}
	closed   bool
}

func (e *entry) notify() {
	for ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}

// Registry owns the boards mounted by signed-in users. Each board lives from
// Mount until Unmount, DropOwner or an idle sweep; nothing is persisted.
type Registry struct {
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	boards map[string]*entry
}

// NewRegistry creates a registry whose Sweep discards boards idle for longer
// than idleTTL. A non-positive idleTTL disables sweeping.
func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		idleTTL: idleTTL,
		now:     time.Now,
		boards:  make(map[string]*entry),
	}
}

// Mount creates an empty board for owner and returns its id.
func (r *Registry) Mount(owner string) string {
	id := uuid.Must(uuid.NewV7()).String()
	e := &entry{
		owner:    owner,
		board:    domain.NewBoard(),
		lastUsed: r.now(),
		subs:     make(map[chan struct{}]struct{}),
	}
	r.mu.Lock()
	r.boards[id] = e
	r.mu.Unlock()
	return id
}

// Unmount discards the board. It reports whether a board was removed.
func (r *Registry) Unmount(owner, id string) bool {
	r.mu.Lock()
	e, ok := r.boards[id]
	if ok && e.owner == owner {
		delete(r.boards, id)
	} else {
		ok = false
	}
	r.mu.Unlock()
	if ok {
		e.close()
	}
	return ok
}

func (r *Registry) lookup(owner, id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.boards[id]
	if !ok || e.owner != owner {
		return nil, ErrBoardNotFound
	}
	return e, nil
}

// Do runs fn with exclusive access to the board and then wakes subscribers.
func (r *Registry) Do(owner, id string, fn func(b *domain.Board)) error {
	e, err := r.lookup(owner, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrBoardNotFound
	}
	fn(e.board)
	e.lastUsed = r.now()
	e.notify()
	return nil
}

// Snapshot returns a copy of the board's columns.
func (r *Registry) Snapshot(owner, id string) (domain.Snapshot, error) {
	e, err := r.lookup(owner, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.Snapshot{}, ErrBoardNotFound
	}
	e.lastUsed = r.now()
	return e.board.Snapshot(), nil
}

// Subscribe returns a channel signalled after each change to the board and
// closed when the board goes away. Call the returned func to stop listening.
func (r *Registry) Subscribe(owner, id string) (<-chan struct{}, func(), error) {
	e, err := r.lookup(owner, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, ErrBoardNotFound
	}
	e.subs[ch] = struct{}{}
	e.lastUsed = r.now()
	unsubscribe := func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
	return ch, unsubscribe, nil
}

// DropOwner discards every board held by owner and returns how many went.
func (r *Registry) DropOwner(owner string) int {
	var dropped []*entry
	r.mu.Lock()
	for id, e := range r.boards {
		if e.owner == owner {
			delete(r.boards, id)
			dropped = append(dropped, e)
		}
	}
	r.mu.Unlock()
	for _, e := range dropped {
		e.close()
	}
	return len(dropped)
}

// Sweep discards boards without activity since now minus the idle TTL.
// Boards with live subscribers are kept.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)
	var dropped []*entry
	r.mu.Lock()
	for id, e := range r.boards {
		e.mu.Lock()
		idle := len(e.subs) == 0 && e.lastUsed.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(r.boards, id)
			dropped = append(dropped, e)
		}
	}
	r.mu.Unlock()
	for _, e := range dropped {
		e.close()
	}
	return len(dropped)
}

// Len returns the number of mounted boards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration, logger *log.Logger) {
	if interval <= 0 || r.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 && logger != nil {
				logger.WithFields(log.Fields{"dropped": n, "mounted": r.Len()}).Debug("swept idle boards")
			}
		}
	}
}
