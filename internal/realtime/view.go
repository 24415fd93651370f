package realtime

import (
	"context"

	"campushub/internal/observability"
)

// Decision is what a view did with one event.
type Decision int

const (
	// Ignored means the event does not concern the view.
	Ignored Decision = iota
	// Patched means local state was updated in place.
	Patched
	// Refetch means the event could not be applied and the view must reload.
	Refetch
)

func (d Decision) String() string {
	switch d {
	case Patched:
		return "patched"
	case Refetch:
		return "refetch"
	default:
		return "ignored"
	}
}

// View is a live, locally reconciled slice of store state. Views are not safe for
// concurrent use; each is confined to the connection that opened it.
type View interface {
	Kind() string
	Filters() []Filter
	Apply(ev ChangeEvent) Decision
	Reload(ctx context.Context) error
	Snapshot() any
}

// Summarizer is implemented by views with a small derived state worth sending
// alongside each patch.
type Summarizer interface {
	Summary() any
}

// ApplyAndReload runs ev through v, reloading on Refetch, and records the decision.
func ApplyAndReload(ctx context.Context, v View, ev ChangeEvent) (Decision, error) {
	d := v.Apply(ev)
	observability.RealtimeEvents.WithLabelValues(ev.Table, d.String()).Inc()
	if d == Refetch {
		return d, v.Reload(ctx)
	}
	return d, nil
}

func indexOf[T any](items []T, id func(T) uint, want uint) int {
	for i := range items {
		if id(items[i]) == want {
			return i
		}
	}
	return -1
}
