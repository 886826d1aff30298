package bank

// The bank exposes two verb surfaces over the same store: the
// exclusive-consumption verbs (take/put/peek/check-pending and their
// blocking forms) and the broadcast-log verbs (put!/list/read!/gather!).
// put! and list are aliases of put and peek; read! adds a timestamp
// cursor; gather! is the multi-party barrier.
const (
	VerbTake         = "take"
	VerbTakeBlocking = "take-blocking"
	VerbPut          = "put"
	VerbPutBlocking  = "put-blocking"
	VerbPeek         = "peek"
	VerbCheckPending = "check-pending"
	VerbPutBang      = "put!"
	VerbList         = "list"
	VerbReadBang     = "read!"
	VerbGatherBang   = "gather!"
)

// Message is one entry in the bank. Messages are immutable once created;
// they are only ever removed, never edited.
type Message struct {
	ID          string   `json:"id"`
	TS          int64    `json:"ts"` // epoch milliseconds, server-stamped
	Description string   `json:"description"`
	AgentID     string   `json:"agent_id"`
	Tags        []string `json:"tags"`
	Content     any      `json:"content"`
}

// Filter selects messages by sender and/or tag. An empty field matches
// anything; tags match on intersection.
type Filter struct {
	AgentIDs []string `json:"agent_ids,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Matches reports whether m satisfies the filter.
func (f Filter) Matches(m *Message) bool {
	if len(f.AgentIDs) > 0 && !contains(f.AgentIDs, m.AgentID) {
		return false
	}
	if len(f.Tags) > 0 && !overlaps(m.Tags, f.Tags) {
		return false
	}
	return true
}

// PendingRequest is the observable record of an in-flight put-blocking
// call. It exists only while the call is waiting for a response.
type PendingRequest struct {
	ID      string   `json:"id"`
	TS      int64    `json:"ts"`
	AgentID string   `json:"agent_id"`
	Tags    []string `json:"tags"`
	Timeout float64  `json:"timeout"` // seconds
}

// PutInput carries the caller-supplied fields of a new message.
type PutInput struct {
	Description string
	AgentID     string
	Tags        []string
	Content     any
}

// Request is the wire envelope accepted by the dispatcher. Fields not
// used by a verb are ignored.
type Request struct {
	Verb        string   `json:"verb"`
	Description string   `json:"description,omitempty"`
	AgentID     string   `json:"agent_id,omitempty"`
	AgentIDs    []string `json:"agent_ids,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Content     any      `json:"content,omitempty"`
	Timeout     *float64 `json:"timeout,omitempty"` // seconds; nil means the verb's default
	Since       int64    `json:"since,omitempty"`   // epoch ms cursor for read!
}

// TakeResult answers take and take-blocking. Message is nil when a
// non-blocking take found nothing.
type TakeResult struct {
	OK      bool     `json:"ok"`
	Message *Message `json:"message,omitempty"`
}

// PutResult answers put and put!.
type PutResult struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// PutBlockingResult answers put-blocking. Response is absent when the
// wait timed out; that is a successful completion, not an error.
type PutBlockingResult struct {
	OK       bool     `json:"ok"`
	ID       string   `json:"id"`
	Response *Message `json:"response,omitempty"`
}

// PeekResult answers peek, list, and read!.
type PeekResult struct {
	Messages []Message `json:"messages"`
}

// PendingResult answers check-pending.
type PendingResult struct {
	Pending []PendingRequest `json:"pending"`
}

// GatherPair is one satisfied (agent_id, tag) requirement.
type GatherPair [2]string

// GatherResult answers gather!. Partial is true when the deadline
// elapsed before every required pair was observed.
type GatherResult struct {
	Completed []GatherPair `json:"completed"`
	Partial   bool         `json:"partial"`
	Messages  []Message    `json:"messages"`
}

// ErrorResult is the uniform failure envelope.
type ErrorResult struct {
	Err string `json:"error"`
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
