package bot

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	queueSize   = 64
	idleTimeout = time.Minute
)

type job func(ctx context.Context)

// Dispatcher runs jobs in FIFO order per chat. Each chat with pending work
// has one worker goroutine; different chats run concurrently.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64]chan job
	wg     sync.WaitGroup
	ctx    context.Context
	idle   time.Duration
	logger *logrus.Logger
}

// NewDispatcher creates a dispatcher. Call Start before submitting jobs.
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		queues: make(map[int64]chan job),
		ctx:    context.Background(),
		idle:   idleTimeout,
		logger: logger,
	}
}

// Start sets the context jobs run with. Workers stop when it is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

// Submit queues fn on the worker of chatID.
func (d *Dispatcher) Submit(chatID int64, fn job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil {
		return
	}

	q, ok := d.queues[chatID]
	if !ok {
		q = make(chan job, queueSize)
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.work(d.ctx, chatID, q)
	}

	select {
	case q <- fn:
	default:
		d.logger.WithField("chat", chatID).Warn("Chat queue full, dropping update")
	}
}

func (d *Dispatcher) work(ctx context.Context, chatID int64, q chan job) {
	defer d.wg.Done()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.remove(chatID, q)
			return
		case fn := <-q:
			d.run(ctx, chatID, fn)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.idle)
		case <-timer.C:
			d.mu.Lock()
			if len(q) > 0 {
				d.mu.Unlock()
				timer.Reset(d.idle)
				continue
			}
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, chatID int64, fn job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"chat":  chatID,
				"panic": r,
			}).Error("Update handler panicked")
		}
	}()
	fn(ctx)
}

func (d *Dispatcher) remove(chatID int64, q chan job) {
	d.mu.Lock()
	if d.queues[chatID] == q {
		delete(d.queues, chatID)
	}
	d.mu.Unlock()
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
