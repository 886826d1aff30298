package bank

import (
	"sync"
	"testing"
	"time"
)

func newTestBank(t *testing.T) *Bank {
	t.Helper()
	return New(Config{
		DefaultBlockTimeout:  2 * time.Second,
		DefaultGatherTimeout: 1 * time.Second,
	})
}

func mustPut(t *testing.T, b *Bank, agentID string, tags []string, content any) string {
	t.Helper()
	id, err := b.Put(PutInput{
		Description: "test message",
		AgentID:     agentID,
		Tags:        tags,
		Content:     content,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	return id
}

func TestPutAssignsIDAndTimestamp(t *testing.T) {
	b := newTestBank(t)
	id1 := mustPut(t, b, "a1", []string{"status"}, nil)
	id2 := mustPut(t, b, "a1", []string{"status"}, nil)
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("expected two distinct non-empty ids, got %q and %q", id1, id2)
	}
	msgs := b.Peek(Filter{})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgs))
	}
	if msgs[0].TS <= 0 || msgs[1].TS < msgs[0].TS {
		t.Fatalf("expected positive non-decreasing timestamps, got %d then %d", msgs[0].TS, msgs[1].TS)
	}
}

func TestPutValidation(t *testing.T) {
	b := newTestBank(t)
	cases := []struct {
		name  string
		input PutInput
	}{
		{"missing description", PutInput{AgentID: "a1", Tags: []string{"x"}}},
		{"missing agent_id", PutInput{Description: "d", Tags: []string{"x"}}},
		{"missing tags", PutInput{Description: "d", AgentID: "a1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Put(tc.input)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			be, ok := err.(*Error)
			if !ok || be.Code != CodeValidation {
				t.Fatalf("expected validation *Error, got %v", err)
			}
		})
	}
}

func TestTakeConsumesExactlyOnce(t *testing.T) {
	b := newTestBank(t)
	id, err := b.Put(PutInput{
		Description: "s1",
		AgentID:     "A1",
		Tags:        []string{"status"},
		Content:     map[string]any{"p": 50},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	m := b.Take(Filter{Tags: []string{"status"}})
	if m == nil {
		t.Fatalf("expected a message")
	}
	if m.ID != id || m.AgentID != "A1" || m.Description != "s1" {
		t.Fatalf("unexpected message: %+v", m)
	}

	if again := b.Take(Filter{Tags: []string{"status"}}); again != nil {
		t.Fatalf("second take should be empty, got %+v", again)
	}
}

func TestTakeFilterSemantics(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a1", []string{"alpha"}, nil)
	idB := mustPut(t, b, "a2", []string{"beta", "gamma"}, nil)

	if m := b.Take(Filter{AgentIDs: []string{"a3"}}); m != nil {
		t.Fatalf("filter on unknown agent should match nothing, got %+v", m)
	}
	if m := b.Take(Filter{AgentIDs: []string{"a2"}, Tags: []string{"gamma", "delta"}}); m == nil || m.ID != idB {
		t.Fatalf("expected tag-intersection match on a2's message, got %+v", m)
	}
	// arrival order: the remaining a1 message is first for an open filter
	if m := b.Take(Filter{}); m == nil || m.AgentID != "a1" {
		t.Fatalf("expected a1's message next in arrival order, got %+v", m)
	}
}

func TestPeekIsIdempotent(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a1", []string{"info"}, "payload")

	first := b.Peek(Filter{Tags: []string{"info"}})
	second := b.Peek(Filter{Tags: []string{"info"}})
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("peek must not consume: got %d then %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Fatalf("peek results diverged: %s vs %s", first[0].ID, second[0].ID)
	}
}

func TestReadSince(t *testing.T) {
	now := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	b := New(Config{Clock: func() time.Time { return now }})

	mustPut(t, b, "a1", []string{"log"}, 1)
	cutoff := now.UnixMilli()
	now = now.Add(time.Second)
	id2 := mustPut(t, b, "a1", []string{"log"}, 2)

	msgs := b.ReadSince(Filter{Tags: []string{"log"}}, cutoff)
	if len(msgs) != 1 || msgs[0].ID != id2 {
		t.Fatalf("expected only the message after the cursor, got %+v", msgs)
	}
	all := b.ReadSince(Filter{}, 0)
	if len(all) != 2 {
		t.Fatalf("expected both messages for a zero cursor, got %d", len(all))
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	now := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	b := New(Config{Clock: func() time.Time { return now }})

	mustPut(t, b, "a1", []string{"x"}, nil)
	now = now.Add(-time.Hour) // wall clock rewinds
	mustPut(t, b, "a1", []string{"x"}, nil)

	msgs := b.Peek(Filter{})
	if msgs[1].TS < msgs[0].TS {
		t.Fatalf("timestamps regressed: %d then %d", msgs[0].TS, msgs[1].TS)
	}
}

func TestTakeBlockingChecksBacklogFirst(t *testing.T) {
	b := newTestBank(t)
	id := mustPut(t, b, "a1", []string{"ready"}, nil)

	m, err := b.TakeBlocking(Filter{Tags: []string{"ready"}}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("take-blocking: %v", err)
	}
	if m.ID != id {
		t.Fatalf("expected backlog message %s, got %s", id, m.ID)
	}
}

func TestTakeBlockingWaitsForPut(t *testing.T) {
	b := newTestBank(t)
	idCh := make(chan string, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		idCh <- mustPutAsync(b, "a1", []string{"urgent"})
	}()

	m, err := b.TakeBlocking(Filter{AgentIDs: []string{"a1"}, Tags: []string{"urgent"}}, 2*time.Second)
	if err != nil {
		t.Fatalf("take-blocking: %v", err)
	}
	if id := <-idCh; m.ID != id {
		t.Fatalf("expected the awaited message %s, got %s", id, m.ID)
	}
	if left := b.Peek(Filter{}); len(left) != 0 {
		t.Fatalf("message should have been consumed, %d left", len(left))
	}
}

func mustPutAsync(b *Bank, agentID string, tags []string) string {
	id, err := b.Put(PutInput{Description: "async", AgentID: agentID, Tags: tags})
	if err != nil {
		panic(err)
	}
	return id
}

func TestTakeBlockingTimeout(t *testing.T) {
	b := newTestBank(t)
	start := time.Now()
	_, err := b.TakeBlocking(Filter{Tags: []string{"never"}}, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected timeout error")
	}
	be, ok := err.(*Error)
	if !ok || be.Code != CodeTimeout {
		t.Fatalf("expected timeout *Error, got %v", err)
	}
	if be.Message != "timeout: no matching message received" {
		t.Fatalf("unexpected timeout message: %q", be.Message)
	}
	if elapsed < 100*time.Millisecond {
		t.Fatalf("returned before the deadline: %v", elapsed)
	}
}

func TestTakeBlockingSingleConsumer(t *testing.T) {
	b := newTestBank(t)

	results := make(chan *Message, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, _ := b.TakeBlocking(Filter{Tags: []string{"one"}}, 300*time.Millisecond)
			results <- m
		}()
	}

	time.Sleep(50 * time.Millisecond)
	mustPut(t, b, "a1", []string{"one"}, nil)
	wg.Wait()
	close(results)

	got := 0
	for m := range results {
		if m != nil {
			got++
		}
	}
	if got != 1 {
		t.Fatalf("exactly one waiter must receive the message, got %d", got)
	}
}

func TestConcurrentTakersNoDuplicates(t *testing.T) {
	b := newTestBank(t)
	const n = 8

	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := b.TakeBlocking(Filter{Tags: []string{"work"}}, 2*time.Second)
			if err != nil {
				t.Errorf("take-blocking: %v", err)
				return
			}
			ids <- m.ID
		}()
	}

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < n; i++ {
		mustPut(t, b, "producer", []string{"work"}, i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("message %s delivered twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct deliveries, got %d", n, len(seen))
	}
	if left := b.Peek(Filter{}); len(left) != 0 {
		t.Fatalf("all messages should be consumed, %d left", len(left))
	}
}

func TestPutBlockingReceivesResponse(t *testing.T) {
	b := newTestBank(t)

	respCh := make(chan string, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		respCh <- mustPutAsync(b, "A2", []string{"review"})
	}()

	id, resp, err := b.PutBlocking(PutInput{
		Description: "request for review",
		AgentID:     "A1",
		Tags:        []string{"review", "request"},
	}, 2*time.Second)
	if err != nil {
		t.Fatalf("put-blocking: %v", err)
	}
	if id == "" {
		t.Fatalf("expected an id for the original message")
	}
	if respID := <-respCh; resp == nil || resp.ID != respID {
		t.Fatalf("expected response %s, got %+v", respID, resp)
	}
	// put-blocking never consumes: both the request and the response stay
	if left := b.Peek(Filter{}); len(left) != 2 {
		t.Fatalf("expected 2 messages in the backlog, got %d", len(left))
	}
}

func TestPutBlockingTimeoutIsSuccess(t *testing.T) {
	b := newTestBank(t)
	start := time.Now()
	id, resp, err := b.PutBlocking(PutInput{
		Description: "no one answers",
		AgentID:     "A1",
		Tags:        []string{"lonely"},
	}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("put-blocking timeout must not be an error: %v", err)
	}
	if id == "" || resp != nil {
		t.Fatalf("expected id and nil response, got id=%q resp=%+v", id, resp)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Fatalf("resolved before the deadline")
	}
	if pending := b.CheckPending(""); len(pending) != 0 {
		t.Fatalf("pending registry not cleaned up: %+v", pending)
	}
}

func TestPutBlockingCorrelationHeuristic(t *testing.T) {
	b := newTestBank(t)

	wantCh := make(chan string, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		mustPutAsync(b, "A1", []string{"review"}) // same agent: not a response
		time.Sleep(30 * time.Millisecond)
		mustPutAsync(b, "A2", []string{"other"}) // no tag overlap: not a response
		time.Sleep(30 * time.Millisecond)
		wantCh <- mustPutAsync(b, "A2", []string{"review"})
	}()

	_, resp, err := b.PutBlocking(PutInput{
		Description: "request",
		AgentID:     "A1",
		Tags:        []string{"review"},
	}, 2*time.Second)
	if err != nil {
		t.Fatalf("put-blocking: %v", err)
	}
	if wantID := <-wantCh; resp == nil || resp.ID != wantID {
		t.Fatalf("expected the overlapping-tag message from A2, got %+v", resp)
	}
}

func TestCheckPendingLifecycle(t *testing.T) {
	b := newTestBank(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = b.PutBlocking(PutInput{
			Description: "waiting",
			AgentID:     "A1",
			Tags:        []string{"review"},
		}, time.Second)
	}()

	// the record appears while the call is in flight
	var pending []PendingRequest
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pending = b.CheckPending("A1"); len(pending) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d", len(pending))
	}
	p := pending[0]
	if p.AgentID != "A1" || len(p.Tags) != 1 || p.Tags[0] != "review" || p.ID == "" || p.TS <= 0 {
		t.Fatalf("unexpected pending record: %+v", p)
	}
	if other := b.CheckPending("A2"); len(other) != 0 {
		t.Fatalf("agent filter leaked records: %+v", other)
	}

	mustPut(t, b, "A2", []string{"review"}, nil)
	<-done
	if after := b.CheckPending(""); len(after) != 0 {
		t.Fatalf("record should vanish once resolved: %+v", after)
	}
}

func TestStats(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a1", []string{"x"}, nil)
	mustPut(t, b, "a1", []string{"y"}, nil)
	b.Take(Filter{Tags: []string{"x"}})

	s := b.Stats()
	if s.Messages != 1 || s.TotalPuts != 2 || s.TotalTakes != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
