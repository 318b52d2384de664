package protocol

import "strings"

// LineKind classifies a raw stdout line by its wrapper prefix.
type LineKind int

const (
	// LinePayload is ordinary agent output.
	LinePayload LineKind = iota
	// LineStatus is wrapper chatter such as "[BIOMNI] Starting analysis".
	LineStatus
	// LineResult opens the terminal payload.
	LineResult
	// LineError is a producer-side error report.
	LineError
)

func (k LineKind) String() string {
	switch k {
	case LinePayload:
		return "payload"
	case LineStatus:
		return "status"
	case LineResult:
		return "result"
	case LineError:
		return "error"
	default:
		return "unknown"
	}
}

// CleanLine strips the wrapper prefix from a stdout line and reports which
// prefix it carried. Error lines are rewritten as "ERROR: <text>". Payload
// lines keep their indentation.
func (p Protocol) CleanLine(line string) (string, LineKind) {
	trimmed := strings.TrimSpace(line)

	if p.ResultPrefix != "" && strings.HasPrefix(trimmed, p.ResultPrefix) {
		return strings.TrimSpace(trimmed[len(p.ResultPrefix):]), LineResult
	}
	if p.ErrorPrefix != "" && strings.HasPrefix(trimmed, p.ErrorPrefix) {
		return "ERROR: " + strings.TrimSpace(trimmed[len(p.ErrorPrefix):]), LineError
	}
	for _, prefix := range p.StatusPrefixes {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):]), LineStatus
		}
	}
	return strings.TrimRight(line, " \t\r"), LinePayload
}
