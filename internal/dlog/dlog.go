// Package dlog carries a structured logger on a context.Context, so
// business logic never reads an ambient global logger directly — it
// always goes through the value attached to the request-scoped context,
// falling back to a package default when nothing was attached.
package dlog

import (
	"context"
	"runtime"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var defaultLogger = logrus.StandardLogger().WithField("go.version", runtime.Version())

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithFields returns a copy of ctx whose logger has the given fields
// merged in, inheriting from any logger already present.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, From(ctx).WithFields(fields))
}

// From returns the logger carried on ctx, or the package default if none
// was attached.
func From(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok && l != nil {
		return l
	}
	return defaultLogger
}
