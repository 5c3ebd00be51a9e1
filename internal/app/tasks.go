package app

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueClosed is returned when work is submitted after Close.
var ErrQueueClosed = errors.New("task queue closed")

// Executor runs units of work outside the caller's goroutine.
type Executor interface {
	Submit(ctx context.Context, task func(context.Context)) error
}

// TaskQueue is a bounded FIFO executor drained by a single worker, so tasks
// run one at a time in submission order.
type TaskQueue struct {
	tasks chan func(context.Context)
	log   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewTaskQueue(size int, logger logrus.FieldLogger) *TaskQueue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	q := &TaskQueue{
		tasks: make(chan func(context.Context), size),
		log:   logger,
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues task, blocking while the queue is full.
func (q *TaskQueue) Submit(ctx context.Context, task func(context.Context)) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs what is already queued and waits for it.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *TaskQueue) run() {
	defer close(q.done)
	for task := range q.tasks {
		q.exec(task)
	}
}

func (q *TaskQueue) exec(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("panic", r).Error("background task panicked")
		}
	}()
	task(context.Background())
}
