// Package segment turns the agent's stdout text into discrete messages as
// it streams in.
//
// Messages are delimited by the protocol's agent marker. A segment is only
// complete once the next marker arrives, so the segmenter keeps the open
// segment buffered; Finalize flushes it when the producer is done. Anything
// before the first marker is preamble and is discarded.
package segment

import (
	"strings"

	"agentpipe/internal/logging"
	"agentpipe/internal/protocol"
)

// Segmenter is an incremental message parser. It is not safe for
// concurrent use.
type Segmenter struct {
	proto protocol.Protocol
	x     *extractor

	buf     strings.Builder
	started bool
	// scanFrom is where the search for the closing marker resumes; bytes
	// before it cannot start a marker.
	scanFrom  int
	finalized bool
	emitted   int
}

// New returns a segmenter for the given protocol.
func New(p protocol.Protocol) *Segmenter {
	return &Segmenter{proto: p, x: newExtractor(p)}
}

// Feed appends raw text and returns every message completed by it.
func (s *Segmenter) Feed(text string) []Message {
	if s.finalized {
		logging.SegmentDebug("Feed after Finalize ignored (%d bytes)", len(text))
		return nil
	}
	s.buf.WriteString(text)
	buf := s.buf.String()

	marker := s.proto.AgentMarker
	if !s.started {
		i := strings.Index(buf, marker)
		if i < 0 {
			// Keep just enough to recognise a marker split across chunks.
			if keep := len(marker) - 1; len(buf) > keep {
				s.replace(buf[len(buf)-keep:])
			}
			return nil
		}
		buf = buf[i:]
		s.replace(buf)
		s.started = true
		s.scanFrom = len(marker)
	}

	var out []Message
	cut := false
	for {
		j := strings.Index(buf[s.scanFrom:], marker)
		if j < 0 {
			if resume := len(buf) - len(marker) + 1; resume > s.scanFrom {
				s.scanFrom = resume
			}
			break
		}
		end := s.scanFrom + j
		segment := buf[len(marker):end]
		buf = buf[end:]
		s.scanFrom = len(marker)
		cut = true

		if msg, ok := s.build(segment); ok {
			out = append(out, msg)
		}
	}
	if cut {
		s.replace(buf)
	}
	return out
}

// replace swaps the buffered text for rest. Only the unconsumed tail is
// copied, so appending stays linear in the input.
func (s *Segmenter) replace(rest string) {
	s.buf.Reset()
	s.buf.WriteString(rest)
}

// Finalize processes the trailing open segment, if any, as though it were
// closed at end of input. Only the first call can return a message.
func (s *Segmenter) Finalize() (Message, bool) {
	if s.finalized {
		return Message{}, false
	}
	s.finalized = true

	buf := s.buf.String()
	s.buf.Reset()
	if !s.started {
		return Message{}, false
	}
	return s.build(buf[len(s.proto.AgentMarker):])
}

// Reset returns the segmenter to its initial state.
func (s *Segmenter) Reset() {
	s.buf.Reset()
	s.started = false
	s.scanFrom = 0
	s.finalized = false
	s.emitted = 0
}

// Emitted reports how many messages have been produced so far.
func (s *Segmenter) Emitted() int { return s.emitted }

// Pending reports whether an opened segment is waiting for its close.
func (s *Segmenter) Pending() bool {
	return s.started && !s.finalized && strings.TrimSpace(s.buf.String()[len(s.proto.AgentMarker):]) != ""
}

func (s *Segmenter) build(segment string) (Message, bool) {
	content := strings.TrimSpace(s.filterEcho(segment))
	if content == "" {
		return Message{}, false
	}
	blocks := s.x.blocks(content)
	if len(blocks) == 0 {
		return Message{}, false
	}
	s.emitted++
	logging.SegmentDebug("Message %d: %d blocks, %d bytes", s.emitted, len(blocks), len(content))
	return Message{Blocks: blocks, Language: s.proto.CodeLanguage}, true
}

// filterEcho drops echoed human input. An echo section runs until the next
// agent marker, which by construction is the end of the segment.
func (s *Segmenter) filterEcho(segment string) string {
	if i := strings.Index(segment, s.proto.EchoMarker); i >= 0 {
		return segment[:i]
	}
	return segment
}

// ParseAll segments a complete transcript in one pass.
func ParseAll(p protocol.Protocol, text string) []Message {
	s := New(p)
	msgs := s.Feed(text)
	if last, ok := s.Finalize(); ok {
		msgs = append(msgs, last)
	}
	return msgs
}
