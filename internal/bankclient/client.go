// Package bankclient talks to a blackboard daemon over its line-based
// TCP protocol.
package bankclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/joelkehle/blackboard/internal/bank"
)

// Client holds one connection. Calls are serialized on it, matching the
// protocol's FIFO response pairing; open multiple clients for
// concurrent blocking calls.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and reads its paired response line. The
// context deadline, if any, bounds the whole exchange; blocking verbs
// need a deadline comfortably above their timeout.
func (c *Client) Call(ctx context.Context, req bank.Request) (json.RawMessage, error) {
	blob, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(blob, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return json.RawMessage(bytes.TrimSpace(line)), nil
}

func (c *Client) call(ctx context.Context, req bank.Request, dst any) error {
	raw, err := c.Call(ctx, req)
	if err != nil {
		return err
	}
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Error != "" {
		return fmt.Errorf("bank: %s", probe.Error)
	}
	return json.Unmarshal(raw, dst)
}

func seconds(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	s := d.Seconds()
	return &s
}

// Put appends a message and returns its id.
func (c *Client) Put(ctx context.Context, description, agentID string, tags []string, content any) (string, error) {
	var out bank.PutResult
	err := c.call(ctx, bank.Request{
		Verb:        bank.VerbPut,
		Description: description,
		AgentID:     agentID,
		Tags:        tags,
		Content:     content,
	}, &out)
	return out.ID, err
}

// Broadcast is Put on the broadcast-log surface (put!).
func (c *Client) Broadcast(ctx context.Context, description, agentID string, tags []string, content any) (string, error) {
	var out bank.PutResult
	err := c.call(ctx, bank.Request{
		Verb:        bank.VerbPutBang,
		Description: description,
		AgentID:     agentID,
		Tags:        tags,
		Content:     content,
	}, &out)
	return out.ID, err
}

// PutWait appends a message and waits for a response to it.
func (c *Client) PutWait(ctx context.Context, description, agentID string, tags []string, content any, timeout time.Duration) (bank.PutBlockingResult, error) {
	var out bank.PutBlockingResult
	err := c.call(ctx, bank.Request{
		Verb:        bank.VerbPutBlocking,
		Description: description,
		AgentID:     agentID,
		Tags:        tags,
		Content:     content,
		Timeout:     seconds(timeout),
	}, &out)
	return out, err
}

// Take removes and returns the first matching message; nil means the
// bank had nothing for the filter.
func (c *Client) Take(ctx context.Context, f bank.Filter) (*bank.Message, error) {
	var out bank.TakeResult
	err := c.call(ctx, bank.Request{
		Verb:     bank.VerbTake,
		AgentIDs: f.AgentIDs,
		Tags:     f.Tags,
	}, &out)
	return out.Message, err
}

// TakeWait blocks until a matching message arrives or timeout elapses.
func (c *Client) TakeWait(ctx context.Context, f bank.Filter, timeout time.Duration) (*bank.Message, error) {
	var out bank.TakeResult
	err := c.call(ctx, bank.Request{
		Verb:     bank.VerbTakeBlocking,
		AgentIDs: f.AgentIDs,
		Tags:     f.Tags,
		Timeout:  seconds(timeout),
	}, &out)
	return out.Message, err
}

// Peek lists matching messages without consuming them.
func (c *Client) Peek(ctx context.Context, f bank.Filter) ([]bank.Message, error) {
	var out bank.PeekResult
	err := c.call(ctx, bank.Request{
		Verb:     bank.VerbPeek,
		AgentIDs: f.AgentIDs,
		Tags:     f.Tags,
	}, &out)
	return out.Messages, err
}

// ReadSince lists matching messages stamped after since (epoch ms).
func (c *Client) ReadSince(ctx context.Context, f bank.Filter, since int64) ([]bank.Message, error) {
	var out bank.PeekResult
	err := c.call(ctx, bank.Request{
		Verb:     bank.VerbReadBang,
		AgentIDs: f.AgentIDs,
		Tags:     f.Tags,
		Since:    since,
	}, &out)
	return out.Messages, err
}

// Pending snapshots in-flight put-blocking requests, optionally for one
// agent.
func (c *Client) Pending(ctx context.Context, agentID string) ([]bank.PendingRequest, error) {
	var out bank.PendingResult
	err := c.call(ctx, bank.Request{
		Verb:    bank.VerbCheckPending,
		AgentID: agentID,
	}, &out)
	return out.Pending, err
}

// Gather blocks until every (agent, tag) pair has posted or timeout
// elapses.
func (c *Client) Gather(ctx context.Context, agentIDs, tags []string, timeout time.Duration) (bank.GatherResult, error) {
	var out bank.GatherResult
	err := c.call(ctx, bank.Request{
		Verb:     bank.VerbGatherBang,
		AgentIDs: agentIDs,
		Tags:     tags,
		Timeout:  seconds(timeout),
	}, &out)
	return out, err
}
