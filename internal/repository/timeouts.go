// Package repository implements the durable key-value state, the saved
// proposal list and the in-memory builder session cache.
package repository

import (
	"context"
	"time"
)

// Default store operation timeouts.
const (
	DefaultQueryTimeout       = 5 * time.Second
	DefaultWriteTimeout       = 10 * time.Second
	DefaultTransactionTimeout = 30 * time.Second
)

// WithQueryTimeout returns a context bounded by DefaultQueryTimeout.
func WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultQueryTimeout)
}

// WithWriteTimeout returns a context bounded by DefaultWriteTimeout.
func WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultWriteTimeout)
}

// WithTransactionTimeout returns a context bounded by DefaultTransactionTimeout.
func WithTransactionTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultTransactionTimeout)
}

// withTimeout keeps an existing deadline when it is sooner than timeout.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
