package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/containerd/errdefs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureGeneric},
		{"unauthenticated", errdefs.ErrUnauthenticated, FailureUnauthorized},
		{"wrapped unauthenticated", fmt.Errorf("act: %w", errdefs.ErrUnauthenticated), FailureUnauthorized},
		{"invalid argument", errdefs.ErrInvalidArgument, FailureUnprocessable},
		{"internal", errdefs.ErrInternal, FailureInternal},
		{"unavailable", errdefs.ErrUnavailable, FailureConnectivity},
		{"deadline", context.DeadlineExceeded, FailureConnectivity},
		{"wrapped deadline", fmt.Errorf("act: %w", context.DeadlineExceeded), FailureConnectivity},
		{"canceled", context.Canceled, FailureGeneric},
		{"plain", errors.New("boom"), FailureGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureKindMessages(t *testing.T) {
	seen := map[string]FailureKind{}
	for _, k := range []FailureKind{FailureGeneric, FailureUnauthorized, FailureUnprocessable, FailureInternal, FailureConnectivity} {
		msg := k.Message()
		if msg == "" {
			t.Errorf("%s: empty message", k)
		}
		if other, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", k, other, msg)
		}
		seen[msg] = k
	}
	if FailureKind(99).Message() != FailureGeneric.Message() {
		t.Error("unknown kinds must fall back to the generic message")
	}
}

func TestGateDisplay(t *testing.T) {
	tests := []struct {
		ready, loading, failed bool
		canConverse            bool
		want                   domain.DisplayState
	}{
		{false, false, false, false, domain.DisplayBlockedPending},
		{true, false, false, true, domain.DisplayReady},
		{true, true, false, false, domain.DisplayLoading},
		{false, true, true, false, domain.DisplayLoading},
		{false, false, true, false, domain.DisplayBlockedError},
	}
	for _, tt := range tests {
		var g Gate
		g.Update(tt.ready, tt.loading, tt.failed)
		if got := g.CanConverse(); got != tt.canConverse {
			t.Errorf("Gate%+v.CanConverse() = %v, want %v", tt, got, tt.canConverse)
		}
		if got := g.Display(); got != tt.want {
			t.Errorf("Gate%+v.Display() = %s, want %s", tt, got, tt.want)
		}
	}
}
