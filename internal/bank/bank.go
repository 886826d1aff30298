package bank

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config tunes a Bank. Zero values are replaced with defaults in New.
type Config struct {
	DefaultBlockTimeout  time.Duration // take-blocking and put-blocking
	DefaultGatherTimeout time.Duration // gather!
	MaxWait              time.Duration // cap on any caller-supplied timeout
	Clock                func() time.Time
}

// Bank is the in-memory message store plus its coordination machinery:
// the live message backlog, the waiter list fed by appends, and the
// pending-request registry. One mutex guards all of it, so a backlog
// check followed by a subscription is atomic and a given message can be
// consumed by exactly one reader.
type Bank struct {
	mu sync.Mutex

	cfg Config

	messages []*Message
	lastTS   int64

	nextWaiterID int64
	waiters      []*waiter

	pending map[string]PendingRequest

	totalPuts  int64
	totalTakes int64
}

// New creates an empty Bank. The Bank lives for the process lifetime;
// nothing is persisted.
func New(cfg Config) *Bank {
	if cfg.DefaultBlockTimeout <= 0 {
		cfg.DefaultBlockTimeout = 30 * time.Second
	}
	if cfg.DefaultGatherTimeout <= 0 {
		cfg.DefaultGatherTimeout = 10 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 15 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Bank{
		cfg:     cfg,
		pending: map[string]PendingRequest{},
	}
}

// stampLocked assigns a timestamp that never goes backwards within the
// process, even if the wall clock does.
func (b *Bank) stampLocked() int64 {
	ts := b.cfg.Clock().UnixMilli()
	if ts < b.lastTS {
		ts = b.lastTS
	}
	b.lastTS = ts
	return ts
}

func validatePut(input PutInput) error {
	if strings.TrimSpace(input.Description) == "" {
		return newError(CodeValidation, "description is required")
	}
	if strings.TrimSpace(input.AgentID) == "" {
		return newError(CodeValidation, "agent_id is required")
	}
	if len(input.Tags) == 0 {
		return newError(CodeValidation, "at least one tag is required")
	}
	return nil
}

// appendLocked stores a new message and delivers the append event to
// every subscribed waiter, in subscription order, before the lock is
// released. A waiter may consume the message during delivery.
func (b *Bank) appendLocked(input PutInput) *Message {
	m := &Message{
		ID:          uuid.NewString(),
		TS:          b.stampLocked(),
		Description: input.Description,
		AgentID:     input.AgentID,
		Tags:        append([]string{}, input.Tags...),
		Content:     input.Content,
	}
	b.messages = append(b.messages, m)
	b.totalPuts++
	b.publishLocked(m)
	return m
}

// takeFirstMatchLocked removes and returns the first message in arrival
// order satisfying the filter, or nil. This is the single point of
// consumption for both direct takes and event-driven waiters.
func (b *Bank) takeFirstMatchLocked(f Filter) *Message {
	for i, m := range b.messages {
		if f.Matches(m) {
			b.messages = append(b.messages[:i], b.messages[i+1:]...)
			b.totalTakes++
			return m
		}
	}
	return nil
}

func (b *Bank) removeByIDLocked(id string) *Message {
	for i, m := range b.messages {
		if m.ID == id {
			b.messages = append(b.messages[:i], b.messages[i+1:]...)
			b.totalTakes++
			return m
		}
	}
	return nil
}

func (b *Bank) peekLocked(f Filter) []Message {
	out := []Message{}
	for _, m := range b.messages {
		if f.Matches(m) {
			out = append(out, *copyMessage(m))
		}
	}
	return out
}

func copyMessage(m *Message) *Message {
	cp := *m
	cp.Tags = append([]string{}, m.Tags...)
	return &cp
}

// Put appends a message and returns its identifier. It never blocks.
func (b *Bank) Put(input PutInput) (string, error) {
	if err := validatePut(input); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.appendLocked(input)
	return m.ID, nil
}

// Take removes and returns the first matching message, or nil if none
// is stored. Absence is not an error.
func (b *Bank) Take(f Filter) *Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.takeFirstMatchLocked(f); m != nil {
		return copyMessage(m)
	}
	return nil
}

// TakeBlocking returns the first matching message, waiting up to
// timeout for one to arrive. The backlog is checked and the waiter
// subscribed under one critical section, so an append can be neither
// missed nor double-consumed in between.
func (b *Bank) TakeBlocking(f Filter, timeout time.Duration) (*Message, error) {
	timeout = b.clampTimeout(timeout, b.cfg.DefaultBlockTimeout)

	b.mu.Lock()
	if m := b.takeFirstMatchLocked(f); m != nil {
		b.mu.Unlock()
		return copyMessage(m), nil
	}
	ch := make(chan *Message, 1)
	w := b.addWaiterLocked(func(m *Message) bool {
		if !f.Matches(m) {
			return false
		}
		if b.removeByIDLocked(m.ID) == nil {
			// Another consumer claimed this exact message first;
			// keep waiting.
			return false
		}
		ch <- copyMessage(m)
		return true
	})
	b.mu.Unlock()

	m := awaitWaiter(b, w, ch, timeout, func() *Message { return nil })
	if m == nil {
		return nil, newError(CodeTimeout, "timeout: no matching message received")
	}
	return m, nil
}

// PutBlocking appends a message, then waits up to timeout for a
// response: a later message from a different agent whose tags overlap
// the request's tags. There is no reply-to correlation; concurrent
// put-blocking calls with overlapping tags can be satisfied by the same
// unrelated message. A pending-request record is visible through
// CheckPending for the duration of the wait. Timing out is a success
// with a nil response.
func (b *Bank) PutBlocking(input PutInput, timeout time.Duration) (string, *Message, error) {
	if err := validatePut(input); err != nil {
		return "", nil, err
	}
	timeout = b.clampTimeout(timeout, b.cfg.DefaultBlockTimeout)

	b.mu.Lock()
	m := b.appendLocked(input)

	reqID := uuid.NewString()
	b.pending[reqID] = PendingRequest{
		ID:      reqID,
		TS:      b.stampLocked(),
		AgentID: input.AgentID,
		Tags:    append([]string{}, input.Tags...),
		Timeout: timeout.Seconds(),
	}
	w := b.addWaiterLocked(nil)
	ch := make(chan *Message, 1)
	w.deliver = func(resp *Message) bool {
		if resp.AgentID == input.AgentID {
			return false
		}
		if !overlaps(resp.Tags, input.Tags) {
			return false
		}
		delete(b.pending, reqID)
		ch <- copyMessage(resp)
		return true
	}
	b.mu.Unlock()

	resp := awaitWaiter(b, w, ch, timeout, func() *Message {
		delete(b.pending, reqID)
		return nil
	})
	return m.ID, resp, nil
}

// Peek returns all stored messages satisfying the filter, in arrival
// order, without removing anything.
func (b *Bank) Peek(f Filter) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peekLocked(f)
}

// ReadSince is Peek restricted to messages stamped strictly after
// since (epoch ms).
func (b *Bank) ReadSince(f Filter, since int64) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Message{}
	for _, m := range b.messages {
		if m.TS > since && f.Matches(m) {
			out = append(out, *copyMessage(m))
		}
	}
	return out
}

// CheckPending snapshots the in-flight put-blocking requests, oldest
// first, optionally restricted to one agent.
func (b *Bank) CheckPending(agentID string) []PendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []PendingRequest{}
	for _, p := range b.pending {
		if agentID != "" && p.AgentID != agentID {
			continue
		}
		cp := p
		cp.Tags = append([]string{}, p.Tags...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TS != out[j].TS {
			return out[i].TS < out[j].TS
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats is a point-in-time snapshot for the health surface.
type Stats struct {
	Messages   int   `json:"messages"`
	Pending    int   `json:"pending"`
	Waiters    int   `json:"waiters"`
	TotalPuts  int64 `json:"total_puts"`
	TotalTakes int64 `json:"total_takes"`
}

func (b *Bank) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Messages:   len(b.messages),
		Pending:    len(b.pending),
		Waiters:    len(b.waiters),
		TotalPuts:  b.totalPuts,
		TotalTakes: b.totalTakes,
	}
}
