package segment

import (
	"regexp"
	"strings"

	"agentpipe/internal/protocol"
)

// Kind is the type of a content block.
type Kind int

const (
	KindText Kind = iota
	KindCode
	KindObservation
	KindSolution
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCode:
		return "code"
	case KindObservation:
		return "observation"
	case KindSolution:
		return "solution"
	default:
		return "unknown"
	}
}

// Block is one typed unit of a message.
type Block struct {
	Kind    Kind
	Content string
}

// extractor scans a segment for the protocol's inline tags.
type extractor struct {
	re    *regexp.Regexp
	kinds []Kind // indexed by alternation group
}

func newExtractor(p protocol.Protocol) *extractor {
	tags := []struct {
		name string
		kind Kind
	}{
		{p.Tags.Execute, KindCode},
		{p.Tags.Observation, KindObservation},
		{p.Tags.Solution, KindSolution},
	}

	alts := make([]string, 0, len(tags))
	kinds := make([]Kind, 0, len(tags))
	for _, t := range tags {
		name := regexp.QuoteMeta(t.name)
		alts = append(alts, "<"+name+">(.*?)</"+name+">")
		kinds = append(kinds, t.kind)
	}

	return &extractor{
		re:    regexp.MustCompile("(?s)" + strings.Join(alts, "|")),
		kinds: kinds,
	}
}

// blocks splits content into text and tagged blocks in document order.
// Matches are non-overlapping and leftmost-first; blocks that are empty
// after trimming are dropped.
func (x *extractor) blocks(content string) []Block {
	var out []Block
	add := func(kind Kind, s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, Block{Kind: kind, Content: s})
		}
	}

	pos := 0
	for _, m := range x.re.FindAllStringSubmatchIndex(content, -1) {
		add(KindText, content[pos:m[0]])
		for g, kind := range x.kinds {
			start, end := m[2+2*g], m[3+2*g]
			if start >= 0 {
				add(kind, content[start:end])
				break
			}
		}
		pos = m[1]
	}
	add(KindText, content[pos:])
	return out
}
