package middleware

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telepath-dev/telepath/pkg/route"
)

// ErrPanic wraps a panic recovered from a handler.
var ErrPanic = errors.New("handler panicked")

// Logging creates middleware that writes one log entry per dispatch.
// Successful dispatches log at debug level, failures at error level.
func Logging(logger *zap.Logger) route.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return route.MiddlewareFunc(func(ctx context.Context, d *route.Dispatch, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)

		level := zapcore.DebugLevel
		if err != nil {
			level = zapcore.ErrorLevel
		}
		if ce := logger.Check(level, "dispatch"); ce != nil {
			ce.Write(
				zap.String("dispatch_id", d.ID),
				zap.String("path", d.Match.Path),
				zap.String("route", d.Route()),
				zap.String("match", d.Match.Kind.String()),
				zap.String("handler", d.Match.Node.Ref().Key()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
		return err
	})
}

// Recover creates middleware that turns handler panics into errors
// wrapping ErrPanic. Panics are logged with their stack.
func Recover(logger *zap.Logger) route.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return route.MiddlewareFunc(func(ctx context.Context, d *route.Dispatch, next func(context.Context) error) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panic",
					zap.String("dispatch_id", d.ID),
					zap.String("handler", d.Match.Node.Ref().Key()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = fmt.Errorf("%w: %s: %v", ErrPanic, d.Match.Node.Ref().Key(), r)
			}
		}()
		return next(ctx)
	})
}

func typeName(v any) string {
	return reflect.TypeOf(v).String()
}
