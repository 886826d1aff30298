package bank

import (
	"testing"
	"time"
)

func TestGatherImmediateFromBacklog(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "alice", []string{"finish"}, nil)
	mustPut(t, b, "bob", []string{"finish"}, nil)

	res, err := b.Gather([]string{"alice", "bob"}, []string{"finish"}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if res.Partial {
		t.Fatalf("expected complete gather, got partial")
	}
	want := []GatherPair{{"alice", "finish"}, {"bob", "finish"}}
	if len(res.Completed) != len(want) {
		t.Fatalf("expected %d pairs, got %+v", len(want), res.Completed)
	}
	for i, p := range want {
		if res.Completed[i] != p {
			t.Fatalf("pair %d: expected %v, got %v", i, p, res.Completed[i])
		}
	}
	if len(res.Messages) != 2 {
		t.Fatalf("expected both matching messages, got %d", len(res.Messages))
	}
	// gather is a repeatable read
	if left := b.Peek(Filter{}); len(left) != 2 {
		t.Fatalf("gather must not consume, %d left", len(left))
	}
}

func TestGatherWaitsForArrivals(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "alice", []string{"start"}, nil)

	go func() {
		time.Sleep(40 * time.Millisecond)
		mustPutAsync(b, "bob", []string{"start"})
		time.Sleep(40 * time.Millisecond)
		mustPutAsync(b, "carol", []string{"start"})
	}()

	res, err := b.Gather([]string{"alice", "bob", "carol"}, []string{"start"}, 2*time.Second)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if res.Partial {
		t.Fatalf("expected completion before the deadline")
	}
	if len(res.Completed) != 3 {
		t.Fatalf("expected 3 pairs, got %+v", res.Completed)
	}
}

func TestGatherPartialOnTimeout(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a", []string{"x"}, nil)

	start := time.Now()
	res, err := b.Gather([]string{"a", "b"}, []string{"x"}, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expected partial result")
	}
	if len(res.Completed) != 1 || res.Completed[0] != (GatherPair{"a", "x"}) {
		t.Fatalf("expected only (a,x), got %+v", res.Completed)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Fatalf("gather resolved before the deadline")
	}
	if len(res.Messages) != 1 {
		t.Fatalf("expected the one matching message, got %d", len(res.Messages))
	}
}

func TestGatherOneMessageSatisfiesMultiplePairs(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a", []string{"x", "y", "unrelated"}, nil)

	res, err := b.Gather([]string{"a"}, []string{"x", "y"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if res.Partial || len(res.Completed) != 2 {
		t.Fatalf("one message with both tags should complete both pairs, got %+v", res)
	}
}

func TestGatherDeduplicatesInputs(t *testing.T) {
	b := newTestBank(t)
	go func() {
		time.Sleep(30 * time.Millisecond)
		mustPutAsync(b, "a", []string{"x"})
	}()

	res, err := b.Gather([]string{"a", "a"}, []string{"x", "x"}, time.Second)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if res.Partial || len(res.Completed) != 1 {
		t.Fatalf("duplicate inputs must not inflate the required set, got %+v", res)
	}
}

func TestGatherValidation(t *testing.T) {
	b := newTestBank(t)
	if _, err := b.Gather(nil, []string{"x"}, time.Second); err == nil {
		t.Fatalf("expected error for empty agent_ids")
	}
	if _, err := b.Gather([]string{"a"}, nil, time.Second); err == nil {
		t.Fatalf("expected error for empty tags")
	}
}

func TestGatherRepeatedCallAfterPartial(t *testing.T) {
	b := newTestBank(t)
	mustPut(t, b, "a", []string{"x"}, nil)

	first, err := b.Gather([]string{"a", "b"}, []string{"x"}, 50*time.Millisecond)
	if err != nil || !first.Partial {
		t.Fatalf("expected partial first round: res=%+v err=%v", first, err)
	}

	mustPut(t, b, "b", []string{"x"}, nil)
	second, err := b.Gather([]string{"a", "b"}, []string{"x"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// state is re-derived from the backlog, so the earlier pair still counts
	if second.Partial || len(second.Completed) != 2 {
		t.Fatalf("retry should complete from the backlog, got %+v", second)
	}
}
