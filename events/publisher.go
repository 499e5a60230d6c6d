package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// Sink delivers a single event to durable transport.
type Sink interface {
	EnqueueEvent(ctx context.Context, ev domain.Event) error
}

// Config tunes the publisher's worker pool.
type Config struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

// Publisher hands events to a fixed pool of workers. Delivery is best-effort:
// when the buffer stays full past the handoff timeout the event is dropped.
type Publisher struct {
	cfg    Config
	sink   Sink
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan domain.Event
	closed bool
	wg     sync.WaitGroup
}

// NewPublisher starts the worker pool.
func NewPublisher(sink Sink, cfg Config, logger *log.Logger) *Publisher {
	if sink == nil {
		panic("events.NewPublisher: sink is nil")
	}
	if logger == nil {
		panic("events.NewPublisher: logger is nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	p := &Publisher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		jobs:   make(chan domain.Event, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("event publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return p
}

func (p *Publisher) worker(id int) {
	defer p.wg.Done()
	for ev := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		err := p.sink.EnqueueEvent(ctx, ev)
		cancel()
		if err != nil {
			p.logger.Errorf("event publish failed, err: %v, type: %s, user: %s, worker: %d", err, ev.Type, ev.UserKey, id)
			continue
		}
		p.logger.Debugf("event published, type: %s, id: %s", ev.Type, ev.ID)
	}
}

// Publish queues ev for delivery and reports whether it was accepted.
func (p *Publisher) Publish(ev domain.Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- ev:
		return true
	default:
	}

	if p.cfg.HandoffTimeout <= 0 {
		p.logger.Warnf("event buffer saturated; dropping %s", ev.Type)
		return false
	}

	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case p.jobs <- ev:
		return true
	case <-timer.C:
		p.logger.Warnf("event buffer saturated; dropping %s", ev.Type)
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
