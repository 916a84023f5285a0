package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may replace the context and
// payload; an error from it skips the handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, err error)
}

// HookError is returned when a hook itself fails; Code is ERR_PANIC for a recovered panic.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions to ConsumerHook; nil functions are no-ops.
type HookFuncs struct {
	Before func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error)
	After  func(ctx context.Context, topic string, km kafka.Message, err error)
	Err    func(ctx context.Context, topic string, km kafka.Message, err error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, data, nil
	}
	return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, km, err)
	}
}

type chain []ConsumerHook

// Chain runs hooks in order for BeforeHandle and OnError and in reverse for
// AfterHandle. Nil hooks are dropped. A panicking BeforeHandle becomes an ERR_PANIC
// HookError that every hook sees through OnError; panics elsewhere are swallowed.
func Chain(hooks ...ConsumerHook) ConsumerHook {
	c := make(chain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			c = append(c, h)
		}
	}
	return c
}

func (c chain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error) {
	for _, h := range c {
		nextCtx, nextData, err := guardBefore(h, ctx, topic, km, data)
		if err != nil {
			c.OnError(ctx, topic, km, err)
			return ctx, data, err
		}
		ctx, data = nextCtx, nextData
	}
	return ctx, data, nil
}

func (c chain) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		func() {
			defer func() { _ = recover() }()
			c[i].AfterHandle(ctx, topic, km, err)
		}()
	}
}

func (c chain) OnError(ctx context.Context, topic string, km kafka.Message, err error) {
	for _, h := range c {
		func() {
			defer func() { _ = recover() }()
			h.OnError(ctx, topic, km, err)
		}()
	}
}

func guardBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (outCtx context.Context, outData []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			outCtx, outData = ctx, data
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

// TraceHeader carries the request id across producer and consumer.
const TraceHeader = "trace_id"

// TraceHook stores the trace header and the handling start time in the context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, []byte, error) {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			return WithTraceID(ctx, ExtractTraceID(km)), data, nil
		},
	}
}

type (
	traceIDKey   struct{}
	startTimeKey struct{}
)

// WithTraceID returns ctx carrying id; an empty id leaves ctx unchanged.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey{}, id)
}

func TraceIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(traceIDKey{}).(string)
	return s
}

// StartTimeFrom reports when TraceHook saw the message.
func StartTimeFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey{}).(time.Time)
	return t, ok
}

// ExtractTraceID returns the first non-empty trace header.
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == TraceHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}
