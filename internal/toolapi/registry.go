// Package toolapi exposes the bank verbs as named tools with
// human-readable descriptions, the shape agent frameworks expect.
package toolapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joelkehle/blackboard/internal/bank"
)

// Tool describes one callable surface. The verb it maps to stays
// internal; callers address tools by name only.
type Tool struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`

	verb string
}

type Registry struct {
	dispatcher *bank.Dispatcher
	tools      []Tool
	byName     map[string]Tool
}

func NewRegistry(d *bank.Dispatcher) *Registry {
	tools := []Tool{
		{
			Name:        "send_message",
			Title:       "Send Message",
			Description: "Post a message to the shared board. Returns the message id.",
			verb:        bank.VerbPut,
		},
		{
			Name:        "send_message_and_wait_for_response",
			Title:       "Send Message and Wait",
			Description: "Post a message and block until another agent posts a response sharing one of its tags, or until the timeout elapses.",
			verb:        bank.VerbPutBlocking,
		},
		{
			Name:        "receive_message",
			Title:       "Receive Message",
			Description: "Remove and return the first message matching the given agent ids and tags. Returns nothing when no message matches.",
			verb:        bank.VerbTake,
		},
		{
			Name:        "wait_for_message",
			Title:       "Wait for Message",
			Description: "Remove and return the first matching message, blocking until one arrives or the timeout elapses.",
			verb:        bank.VerbTakeBlocking,
		},
		{
			Name:        "peek_messages",
			Title:       "Peek Messages",
			Description: "List matching messages without removing them.",
			verb:        bank.VerbPeek,
		},
		{
			Name:        "list_messages",
			Title:       "List Messages",
			Description: "List matching messages without removing them.",
			verb:        bank.VerbList,
		},
		{
			Name:        "read_messages",
			Title:       "Read Messages",
			Description: "List matching messages newer than the given timestamp without removing them.",
			verb:        bank.VerbReadBang,
		},
		{
			Name:        "broadcast_message",
			Title:       "Broadcast Message",
			Description: "Post a message meant to be read by many agents rather than consumed by one.",
			verb:        bank.VerbPutBang,
		},
		{
			Name:        "check_pending_requests",
			Title:       "Check Pending Requests",
			Description: "List requests from agents currently waiting on a response.",
			verb:        bank.VerbCheckPending,
		},
		{
			Name:        "gather_messages",
			Title:       "Gather Messages",
			Description: "Wait until every listed agent has posted under every listed tag, or report which pairs arrived before the timeout.",
			verb:        bank.VerbGatherBang,
		},
	}

	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	return &Registry{dispatcher: d, tools: tools, byName: byName}
}

// Tools lists the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Invoke runs the named tool with JSON-object args and returns the
// response rendered as indented JSON text.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	var req bank.Request
	if len(args) > 0 {
		if err := json.Unmarshal(args, &req); err != nil {
			return "", fmt.Errorf("tool %s: bad arguments: %w", name, err)
		}
	}
	req.Verb = tool.verb

	resp := r.dispatcher.Dispatch(ctx, req)
	blob, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("tool %s: render response: %w", name, err)
	}
	return string(blob), nil
}
