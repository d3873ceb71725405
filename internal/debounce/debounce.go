// Package debounce aggregates rapid successive inbound messages per client
// into one combined utterance.
//
// Each client key owns an independent buffer and a restartable delay timer;
// the flush callback fires once per burst with the concatenated text.
package debounce

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

// DefaultWindow is the delay after the most recent message before the
// buffered burst is flushed.
const DefaultWindow = 15 * time.Second

// FlushFunc receives the combined utterance for a client key once the
// debounce window elapses with no further messages. lastMessage is the most
// recent raw envelope of the burst.
type FlushFunc func(clientKey, combinedText string, lastMessage models.Message)

// buffer holds the pending burst for one client key. generation guards
// against superseded timers: a timer only flushes if the buffer generation
// still matches the one it was scheduled for.
type buffer struct {
	messages   []models.Message
	timer      *time.Timer
	generation uint64
}

// Debouncer buffers inbound text messages per client key. Buffer mutation
// and timer replacement are atomic with respect to concurrent arrivals; the
// buffer lock is never held across the flush callback, so bursts for
// different keys flush in parallel. Flushes for the same key are serialized
// through a per-key lock: a flush completes before any later burst for
// that key flushes.
type Debouncer struct {
	mu      sync.Mutex
	buffers map[string]*buffer

	lockMu     sync.Mutex
	flushLocks map[string]*sync.Mutex

	window time.Duration
	flush  FlushFunc
}

// Option defines a configuration option for the Debouncer.
type Option func(*Debouncer)

// WithWindow overrides the debounce window.
func WithWindow(d time.Duration) Option {
	return func(db *Debouncer) {
		if d > 0 {
			db.window = d
		}
	}
}

// New creates a Debouncer that invokes flush for each completed burst.
func New(flush FlushFunc, opts ...Option) *Debouncer {
	db := &Debouncer{
		buffers:    make(map[string]*buffer),
		flushLocks: make(map[string]*sync.Mutex),
		window:     DefaultWindow,
		flush:      flush,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// OnMessage buffers one inbound message and (re)starts the delay timer for
// its client key. Starting a new timer always supersedes the prior one for
// that key; a superseded timer firing late is a no-op. Messages with empty
// payloads still restart the window even though they contribute nothing to
// the combined text.
func (db *Debouncer) OnMessage(msg models.Message) {
	key := msg.SenderKey
	if key == "" {
		slog.Warn("Debouncer dropping message without sender key")
		return
	}

	db.mu.Lock()
	b, ok := db.buffers[key]
	if !ok {
		b = &buffer{}
		db.buffers[key] = b
	}
	b.messages = append(b.messages, msg)
	b.generation++
	gen := b.generation
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(db.window, func() {
		db.fire(key, gen)
	})
	pending := len(b.messages)
	db.mu.Unlock()

	slog.Debug("Debouncer buffered message", "clientKey", key, "pending", pending, "window", db.window)
}

// flushLock returns the flush serialization lock for a client key.
func (db *Debouncer) flushLock(key string) *sync.Mutex {
	db.lockMu.Lock()
	defer db.lockMu.Unlock()
	l, ok := db.flushLocks[key]
	if !ok {
		l = &sync.Mutex{}
		db.flushLocks[key] = l
	}
	return l
}

// fire flushes the buffer for key if gen is still the current generation.
// The flush lock is taken before the buffer is extracted, so a later
// buffering cycle for the same key cannot flush until this one returns.
func (db *Debouncer) fire(key string, gen uint64) {
	fl := db.flushLock(key)
	fl.Lock()
	defer fl.Unlock()

	db.mu.Lock()
	b, ok := db.buffers[key]
	if !ok || b.generation != gen {
		// Superseded or already flushed.
		db.mu.Unlock()
		slog.Debug("Debouncer ignoring stale timer", "clientKey", key, "generation", gen)
		return
	}
	messages := b.messages
	delete(db.buffers, key)
	db.mu.Unlock()

	if len(messages) == 0 {
		return
	}

	combined := combineText(messages)
	last := messages[len(messages)-1]
	slog.Info("Debouncer flushing burst", "clientKey", key, "messages", len(messages), "combined_length", len(combined))
	db.flush(key, combined, last)
}

// Flush forces an immediate flush for a client key, used on shutdown.
// Returns true if a pending burst existed.
func (db *Debouncer) Flush(key string) bool {
	fl := db.flushLock(key)
	fl.Lock()
	defer fl.Unlock()

	db.mu.Lock()
	b, ok := db.buffers[key]
	if !ok {
		db.mu.Unlock()
		return false
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	messages := b.messages
	delete(db.buffers, key)
	db.mu.Unlock()

	if len(messages) == 0 {
		return false
	}
	db.flush(key, combineText(messages), messages[len(messages)-1])
	return true
}

// Pending returns the number of buffered messages for a client key.
func (db *Debouncer) Pending(key string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if b, ok := db.buffers[key]; ok {
		return len(b.messages)
	}
	return 0
}

// Stop cancels all pending timers without flushing.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for key, b := range db.buffers {
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(db.buffers, key)
	}
	slog.Debug("Debouncer stopped, all pending buffers dropped")
}

// combineText joins the non-empty payloads of a burst in arrival order
// with single spaces.
func combineText(messages []models.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Body != "" {
			parts = append(parts, m.Body)
		}
	}
	return strings.Join(parts, " ")
}
