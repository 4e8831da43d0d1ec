package chat

import "github.com/ashureev/techassist/internal/domain"

// Gate tracks the readiness reported by the knowledge retrieval step.
// The zero value is closed and pending.
type Gate struct {
	ready   bool
	loading bool
	failed  bool
}

// Update replaces the gate inputs.
func (g *Gate) Update(ready, loading, failed bool) {
	g.ready, g.loading, g.failed = ready, loading, failed
}

// CanConverse reports whether outbound assistant calls are allowed.
func (g Gate) CanConverse() bool {
	return g.ready && !g.loading
}

// Display returns what the assistant panel should render.
func (g Gate) Display() domain.DisplayState {
	switch {
	case g.loading:
		return domain.DisplayLoading
	case g.failed:
		return domain.DisplayBlockedError
	case !g.ready:
		return domain.DisplayBlockedPending
	default:
		return domain.DisplayReady
	}
}
