package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentpipe/internal/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultQueueSize bounds the shared queue. A full queue pauses the
// readers; nothing is dropped.
const DefaultQueueSize = 256

// item is either a line or the end-of-stream marker for one origin.
type item struct {
	event Event
	eof   bool
}

// Multiplexer fans the two output streams of a Source into one consumer.
type Multiplexer struct {
	QueueSize int
}

// Multiplex drains src with default settings. See Multiplexer.Run.
func Multiplex(ctx context.Context, src Source, emit func(Event)) error {
	var m Multiplexer
	return m.Run(ctx, src, emit)
}

// Run reads both streams concurrently and calls emit for every line, from
// the calling goroutine, until both streams reach end-of-stream. When ctx
// ends first, src is cancelled, no further events are emitted, both
// readers are awaited and ctx.Err() is returned.
func (m *Multiplexer) Run(ctx context.Context, src Source, emit func(Event)) error {
	size := m.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	queue := make(chan item, size)
	readCtx, stopReaders := context.WithCancel(ctx)
	defer stopReaders()

	var g errgroup.Group
	g.Go(func() error { return readLines(readCtx, Primary, src.Primary(), queue) })
	g.Go(func() error { return readLines(readCtx, Secondary, src.Secondary(), queue) })

	open := 2
	for open > 0 {
		select {
		case <-ctx.Done():
			return m.abort(ctx, src, stopReaders, &g)
		case it := <-queue:
			if ctx.Err() != nil {
				return m.abort(ctx, src, stopReaders, &g)
			}
			if it.eof {
				open--
				continue
			}
			emit(it.event)
		}
	}

	return g.Wait()
}

func (m *Multiplexer) abort(ctx context.Context, src Source, stopReaders context.CancelFunc, g *errgroup.Group) error {
	logging.StreamDebug("Multiplex cancelled: %v", ctx.Err())
	src.Cancel()
	stopReaders()
	if err := g.Wait(); err != nil {
		logging.StreamDebug("Reader error during cancellation: %v", err)
	}
	return ctx.Err()
}

// readLines decodes r as UTF-8, replacing ill-formed sequences with U+FFFD,
// and queues one event per line followed by an end marker.
func readLines(ctx context.Context, origin Origin, r io.Reader, queue chan<- item) error {
	send := func(it item) bool {
		select {
		case queue <- it:
			return true
		case <-ctx.Done():
			return false
		}
	}

	br := bufio.NewReader(transform.NewReader(r, runes.ReplaceIllFormed()))
	var seq uint64
	var readErr error
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			seq++
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if !send(item{event: Event{Origin: origin, Text: line, Seq: seq}}) {
				return nil
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				logging.StreamWarn("%s stream read error after %d lines: %v", origin, seq, err)
				readErr = fmt.Errorf("read %s: %w", origin, err)
			}
			break
		}
	}

	logging.StreamDebug("%s stream ended after %d lines", origin, seq)
	send(item{eof: true})
	return readErr
}
