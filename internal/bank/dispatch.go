package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher validates a verb envelope and routes it to the matching
// bank operation. Every outcome, including an internal fault, comes
// back as a JSON-representable value; a handler fault never escapes as
// a panic or an error return.
type Dispatcher struct {
	bank   *Bank
	tracer trace.Tracer
	logger *log.Logger
}

func NewDispatcher(b *Bank) *Dispatcher {
	return &Dispatcher{
		bank:   b,
		tracer: otel.Tracer("blackboard/bank"),
		logger: log.New(os.Stdout, "blackboard ", log.LstdFlags),
	}
}

// DispatchRaw handles one JSON request document. Byte sequences that are
// not JSON at all answer bad-request; valid JSON that is not a request
// object answers invalid-json.
func (d *Dispatcher) DispatchRaw(ctx context.Context, data []byte) any {
	if !json.Valid(data) {
		return ErrorResult{Err: "bad-request"}
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return ErrorResult{Err: "invalid-json"}
	}
	return d.Dispatch(ctx, req)
}

// Dispatch routes a parsed request. The result is one of the *Result
// types or ErrorResult.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (out any) {
	_, span := d.tracer.Start(ctx, "bank.dispatch",
		trace.WithAttributes(attribute.String("bank.verb", req.Verb)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("recovered from %s handler: %v", req.Verb, r)
			out = ErrorResult{Err: fmt.Sprintf("%v", r)}
		}
	}()

	switch req.Verb {
	case VerbTake:
		return TakeResult{OK: true, Message: d.bank.Take(filterFrom(req))}
	case VerbTakeBlocking:
		m, err := d.bank.TakeBlocking(filterFrom(req), timeoutFrom(req))
		if err != nil {
			return errResult(err)
		}
		return TakeResult{OK: true, Message: m}
	case VerbPut, VerbPutBang:
		id, err := d.bank.Put(putInputFrom(req))
		if err != nil {
			return errResult(err)
		}
		return PutResult{OK: true, ID: id}
	case VerbPutBlocking:
		id, resp, err := d.bank.PutBlocking(putInputFrom(req), timeoutFrom(req))
		if err != nil {
			return errResult(err)
		}
		return PutBlockingResult{OK: true, ID: id, Response: resp}
	case VerbPeek, VerbList:
		return PeekResult{Messages: d.bank.Peek(filterFrom(req))}
	case VerbReadBang:
		return PeekResult{Messages: d.bank.ReadSince(filterFrom(req), req.Since)}
	case VerbCheckPending:
		return PendingResult{Pending: d.bank.CheckPending(req.AgentID)}
	case VerbGatherBang:
		res, err := d.bank.Gather(req.AgentIDs, req.Tags, timeoutFrom(req))
		if err != nil {
			return errResult(err)
		}
		return res
	default:
		return ErrorResult{Err: "unknown-verb"}
	}
}

func filterFrom(req Request) Filter {
	return Filter{AgentIDs: req.AgentIDs, Tags: req.Tags}
}

func putInputFrom(req Request) PutInput {
	return PutInput{
		Description: req.Description,
		AgentID:     req.AgentID,
		Tags:        req.Tags,
		Content:     req.Content,
	}
}

func timeoutFrom(req Request) time.Duration {
	if req.Timeout == nil {
		return 0
	}
	return time.Duration(*req.Timeout * float64(time.Second))
}

func errResult(err error) ErrorResult {
	var be *Error
	if errors.As(err, &be) {
		return ErrorResult{Err: be.Message}
	}
	return ErrorResult{Err: err.Error()}
}
