package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/zapgenda/zapgenda/internal/models"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes []flushEvent
	done    chan struct{}
}

type flushEvent struct {
	key      string
	combined string
	last     models.Message
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{done: make(chan struct{}, 16)}
}

func (r *flushRecorder) record(key, combined string, last models.Message) {
	r.mu.Lock()
	r.flushes = append(r.flushes, flushEvent{key: key, combined: combined, last: last})
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *flushRecorder) events() []flushEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]flushEvent, len(r.flushes))
	copy(out, r.flushes)
	return out
}

func (r *flushRecorder) waitForFlushes(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-deadline:
			t.Fatalf("timed out waiting for flush %d of %d", i+1, n)
		}
	}
}

func textMsg(key, body string) models.Message {
	return models.Message{SenderKey: key, Type: models.MessageTypeText, Body: body, Time: time.Now().Unix()}
}

func TestCoalescesBurstIntoSingleFlush(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(40*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("5511999990000", "A"))
	db.OnMessage(textMsg("5511999990000", "B"))

	rec.waitForFlushes(t, 1, time.Second)

	events := rec.events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one flush, got %d", len(events))
	}
	if events[0].combined != "A B" {
		t.Errorf("combined = %q, want %q", events[0].combined, "A B")
	}
	if events[0].last.Body != "B" {
		t.Errorf("last message = %q, want %q", events[0].last.Body, "B")
	}
}

func TestIndependentKeysFlushSeparately(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(40*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("111", "A"))
	db.OnMessage(textMsg("222", "C"))

	rec.waitForFlushes(t, 2, time.Second)

	events := rec.events()
	if len(events) != 2 {
		t.Fatalf("expected two flushes, got %d", len(events))
	}
	byKey := map[string]string{}
	for _, e := range events {
		byKey[e.key] = e.combined
	}
	if byKey["111"] != "A" || byKey["222"] != "C" {
		t.Errorf("unexpected flush contents: %v", byKey)
	}
}

func TestTimerSupersessionFiresOnce(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(30*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("333", "um"))
	db.OnMessage(textMsg("333", "dois"))
	db.OnMessage(textMsg("333", "três"))

	rec.waitForFlushes(t, 1, time.Second)
	// Give superseded timers a chance to misfire before asserting.
	time.Sleep(100 * time.Millisecond)

	events := rec.events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one flush after supersession, got %d", len(events))
	}
	if events[0].combined != "um dois três" {
		t.Errorf("combined = %q, want %q", events[0].combined, "um dois três")
	}
}

func TestEmptyPayloadsSkippedInCombinedText(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(30*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("444", "A"))
	db.OnMessage(textMsg("444", ""))
	db.OnMessage(textMsg("444", "B"))

	rec.waitForFlushes(t, 1, time.Second)

	events := rec.events()
	if events[0].combined != "A B" {
		t.Errorf("combined = %q, want %q (empty payload skipped)", events[0].combined, "A B")
	}
}

func TestEmptyPayloadStillRestartsWindow(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(60*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("555", "A"))
	time.Sleep(40 * time.Millisecond)
	// Arrives before the window elapses and must push the flush out again.
	db.OnMessage(textMsg("555", ""))
	time.Sleep(40 * time.Millisecond)

	if len(rec.events()) != 0 {
		t.Fatal("flush fired before the restarted window elapsed")
	}

	rec.waitForFlushes(t, 1, time.Second)
	if got := rec.events()[0].combined; got != "A" {
		t.Errorf("combined = %q, want %q", got, "A")
	}
}

func TestFreshBufferAfterFlush(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(30*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("666", "primeira"))
	rec.waitForFlushes(t, 1, time.Second)

	db.OnMessage(textMsg("666", "segunda"))
	rec.waitForFlushes(t, 1, time.Second)

	events := rec.events()
	if len(events) != 2 {
		t.Fatalf("expected two separate flushes, got %d", len(events))
	}
	if events[0].combined != "primeira" || events[1].combined != "segunda" {
		t.Errorf("bursts leaked across flushes: %v", events)
	}
}

func TestConcurrentArrivalsSameKey(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(50*time.Millisecond))
	defer db.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db.OnMessage(textMsg("777", "x"))
		}()
	}
	wg.Wait()

	if pending := db.Pending("777"); pending != 20 {
		t.Errorf("pending = %d, want 20", pending)
	}

	rec.waitForFlushes(t, 1, time.Second)
	events := rec.events()
	if len(events) != 1 {
		t.Fatalf("expected one flush for concurrent burst, got %d", len(events))
	}
	if len(events[0].combined) != 2*20-1 {
		t.Errorf("combined length = %d, want %d", len(events[0].combined), 2*20-1)
	}
}

func TestFlushesForSameKeySerialized(t *testing.T) {
	started := make(chan string, 4)
	release := make(chan struct{})
	var mu sync.Mutex
	var completed []string

	db := New(func(key, combined string, last models.Message) {
		started <- combined
		if combined == "primeira" {
			<-release
		}
		mu.Lock()
		completed = append(completed, combined)
		mu.Unlock()
	}, WithWindow(20*time.Millisecond))
	defer db.Stop()

	db.OnMessage(textMsg("999", "primeira"))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first flush never started")
	}

	// A second burst arrives while the first flush is still running; its
	// timer fires but the flush must wait for the first to complete.
	db.OnMessage(textMsg("999", "segunda"))
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	n := len(completed)
	mu.Unlock()
	if n != 0 {
		t.Fatal("second flush completed while the first was still in flight")
	}

	close(release)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second flush never started")
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n = len(completed)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("flushes did not complete, got %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if completed[0] != "primeira" || completed[1] != "segunda" {
		t.Errorf("flushes completed out of order: %v", completed)
	}
}

func TestForcedFlush(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(time.Hour))
	defer db.Stop()

	db.OnMessage(textMsg("888", "tchau"))
	if !db.Flush("888") {
		t.Fatal("expected forced flush to report a pending burst")
	}
	if db.Flush("888") {
		t.Error("second forced flush should find nothing")
	}

	events := rec.events()
	if len(events) != 1 || events[0].combined != "tchau" {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestDropsMessageWithoutSenderKey(t *testing.T) {
	rec := newFlushRecorder()
	db := New(rec.record, WithWindow(20*time.Millisecond))
	defer db.Stop()

	db.OnMessage(models.Message{Type: models.MessageTypeText, Body: "anon"})
	time.Sleep(60 * time.Millisecond)

	if len(rec.events()) != 0 {
		t.Error("message without sender key must not be buffered")
	}
}
