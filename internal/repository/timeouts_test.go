package repository

import (
	"context"
	"testing"
	"time"
)

func TestWithQueryTimeout_SetsDeadline(t *testing.T) {
	ctx, cancel := WithQueryTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline")
	}
	if remaining := time.Until(deadline); remaining > DefaultQueryTimeout || remaining < DefaultQueryTimeout-time.Second {
		t.Errorf("expected ~%v remaining, got %v", DefaultQueryTimeout, remaining)
	}
}

func TestWithWriteTimeout_KeepsSoonerDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelParent()

	ctx, cancel := WithWriteTimeout(parent)
	defer cancel()

	if ctx != parent {
		t.Error("expected parent context to be returned unchanged")
	}
}

func TestWithTransactionTimeout_ShortensLaterDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()

	ctx, cancel := WithTransactionTimeout(parent)
	defer cancel()

	deadline, _ := ctx.Deadline()
	if time.Until(deadline) > DefaultTransactionTimeout {
		t.Errorf("expected deadline within %v", DefaultTransactionTimeout)
	}
}
