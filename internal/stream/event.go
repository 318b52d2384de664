// Package stream merges the two output streams of a child process into one
// ordered sequence of line events.
package stream

import (
	"context"
	"io"
)

// Origin identifies which output stream a line came from.
type Origin int

const (
	// Primary is the child's stdout.
	Primary Origin = iota + 1
	// Secondary is the child's stderr.
	Secondary
)

func (o Origin) String() string {
	switch o {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Event is one decoded line. Seq starts at 1 and increases by one per line
// within an origin; it says nothing about order across origins.
type Event struct {
	Origin Origin
	Text   string
	Seq    uint64
}

// Source is what the multiplexer drains. *supervisor.Handle satisfies it.
type Source interface {
	Primary() io.Reader
	Secondary() io.Reader
	// Cancel must make both readers return promptly, typically by
	// stopping the producer and closing the pipes.
	Cancel()
}

// Collect drains src and returns every event in delivery order.
func Collect(ctx context.Context, src Source) ([]Event, error) {
	var events []Event
	err := Multiplex(ctx, src, func(e Event) {
		events = append(events, e)
	})
	return events, err
}
