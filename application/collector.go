package application

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrNoPendingPrompt is returned when a follow-up arrives with no prompt waiting for it
var ErrNoPendingPrompt = errors.New("no pending prompt")

// Continuation handles the intent a prompt was waiting for
type Continuation func(ctx context.Context, intent Intent) (*Result, error)

// Collector holds at most one pending prompt per (table, actor). Each prompt
// is a task that ends with the captured intent or a timeout.
type Collector struct {
	mu      sync.Mutex
	pending map[CollectorKey]*pendingTask
	timeout time.Duration
}

type pendingTask struct {
	deliveries chan delivery
	done       chan struct{}
	cancel     context.CancelFunc
}

type delivery struct {
	ctx    context.Context
	intent Intent
	reply  chan reply
}

type reply struct {
	result *Result
	err    error
}

// NewCollector creates a collector whose prompts expire after timeout
func NewCollector(timeout time.Duration) *Collector {
	return &Collector{
		pending: make(map[CollectorKey]*pendingTask),
		timeout: timeout,
	}
}

// Timeout returns how long a prompt waits
func (c *Collector) Timeout() time.Duration {
	return c.timeout
}

// Await starts waiting for the next intent of key. A previous prompt for the
// same key is cancelled. onTimeout runs if nothing arrives in time.
func (c *Collector) Await(key CollectorKey, next Continuation, onTimeout func()) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	task := &pendingTask{
		deliveries: make(chan delivery, 1),
		done:       make(chan struct{}),
		cancel:     cancel,
	}

	c.mu.Lock()
	if previous, ok := c.pending[key]; ok {
		previous.cancel()
	}
	c.pending[key] = task
	c.mu.Unlock()

	go func() {
		defer close(task.done)
		defer cancel()
		defer c.remove(key, task)

		select {
		case d := <-task.deliveries:
			result, err := next(d.ctx, d.intent)
			d.reply <- reply{result: result, err: err}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && onTimeout != nil {
				log.WithFields(log.Fields{
					"guildID":   key.GuildID,
					"channelID": key.ChannelID,
					"actorID":   key.ActorID,
				}).Debug("Prompt timed out")
				onTimeout()
			}
		}
	}()
}

// Deliver hands an intent to the prompt waiting on its key and returns what
// the prompt's continuation produced. It returns ErrNoPendingPrompt when no
// prompt is waiting or it ended before taking the intent.
func (c *Collector) Deliver(ctx context.Context, intent Intent) (*Result, error) {
	key := intent.Key()

	c.mu.Lock()
	task, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		return nil, ErrNoPendingPrompt
	}

	d := delivery{ctx: ctx, intent: intent, reply: make(chan reply, 1)}
	task.deliveries <- d

	select {
	case r := <-d.reply:
		return r.result, r.err
	case <-task.done:
		// The task may have replied right before finishing
		select {
		case r := <-d.reply:
			return r.result, r.err
		default:
			return nil, ErrNoPendingPrompt
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel drops the prompt of key without running it
func (c *Collector) Cancel(key CollectorKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task, ok := c.pending[key]; ok {
		task.cancel()
		delete(c.pending, key)
	}
}

// IsWaiting reports whether a prompt is waiting on key
func (c *Collector) IsWaiting(key CollectorKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Pending returns the number of waiting prompts
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Collector) remove(key CollectorKey, task *pendingTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key] == task {
		delete(c.pending, key)
	}
}
