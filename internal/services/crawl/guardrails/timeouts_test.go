package guardrails

import (
	"context"
	"testing"
	"time"
)

func TestWithUnit_ZeroInheritsParent(t *testing.T) {
	ctx, cancel := WithUnit(context.Background(), Timeouts{})
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero budget should not set a deadline")
	}
	cancel()
	if ctx.Err() == nil {
		t.Fatalf("child should still be cancelable")
	}
}

func TestChildNeverExtendsParent(t *testing.T) {
	parent, pcancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer pcancel()

	ctx, cancel := ForMerge(parent, Timeouts{Merge: time.Hour})
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected deadline")
	}
	if time.Until(dl) > time.Second {
		t.Fatalf("child deadline %v exceeds parent", time.Until(dl))
	}
}

func TestForLedger_Tighter(t *testing.T) {
	ctx, cancel := ForLedger(context.Background(), Timeouts{Ledger: 20 * time.Millisecond})
	defer cancel()
	if r := Remaining(ctx); r <= 0 || r > 20*time.Millisecond {
		t.Fatalf("remaining = %v", r)
	}
	<-ctx.Done()
	if Remaining(ctx) != 0 {
		t.Fatalf("expired context should report zero")
	}
}

func TestRemaining_NoDeadline(t *testing.T) {
	if Remaining(context.Background()) != 0 {
		t.Fatalf("background has no remaining budget")
	}
}
