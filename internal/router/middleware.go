package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"listingbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

var (
	// ErrNotOwner is returned for owner-only commands sent by anyone else.
	ErrNotOwner = errors.New("command restricted to bot owners")

	errPanic = errors.New("handler panicked")
)

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// pipeline is the handler chain every command runs through.
func (m *Manager) pipeline(cmd *Command) HandlerFunc {
	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return Chain(cmd.Handle,
		replyErrors(cmd.Name),
		logOutcome(),
		recoverPanics(),
		ownersOnly(m, cmd.Access),
		withTimeout(timeout),
	)
}

// replyErrors turns a handler error into a chat reply. The reply is sent
// even when the handler deadline has passed.
func replyErrors(name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err == nil {
				return nil
			}
			var text string
			switch {
			case errors.Is(err, ErrNotOwner):
				text = "⛔ This command is restricted to bot owners."
			case errors.Is(err, context.DeadlineExceeded):
				text = fmt.Sprintf("⌛ /%s timed out.", name)
			case errors.Is(err, errPanic):
				text = "❌ Internal error, see logs."
			default:
				text = "❌ " + err.Error()
			}
			_ = req.ReplyText(context.WithoutCancel(ctx), text)
			return err
		}
	}
}

func logOutcome() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			fields := []logx.Field{
				logx.String("cmd", req.Command),
				logx.Int("args", len(req.Args)),
				logx.Duration("took", time.Since(start)),
			}
			switch {
			case errors.Is(err, ErrNotOwner):
				req.Logger.Warn("unauthorized command", fields...)
			case err != nil:
				req.Logger.Warn("command failed", append(fields, logx.Err(err))...)
			default:
				req.Logger.Info("command handled", fields...)
			}
			return err
		}
	}
}

func recoverPanics() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("command panicked",
						logx.String("cmd", req.Command),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("%w: %v", errPanic, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func ownersOnly(m *Manager, access Access) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if access != AccessOwnerOnly {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			if !m.IsOwner(req.FromID) {
				return ErrNotOwner
			}
			return next(ctx, req)
		}
	}
}

// withTimeout bounds a handler. A negative d leaves it unbounded.
func withTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d < 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}
