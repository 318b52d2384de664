package runner

import (
	"agentpipe/internal/progress"
	"agentpipe/internal/result"
	"agentpipe/internal/segment"
)

// UpdateKind identifies what an Update carries.
type UpdateKind int

const (
	// UpdateMessage is a completed, rendered agent message.
	UpdateMessage UpdateKind = iota + 1
	// UpdateDiagnostic is a stderr line or a producer error report.
	UpdateDiagnostic
	// UpdateProgress is a status line or a progress node.
	UpdateProgress
	// UpdateFailure is the terminal error of a run. Nothing follows it.
	UpdateFailure
	// UpdateResult carries the decoded terminal payload.
	UpdateResult
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateMessage:
		return "message"
	case UpdateDiagnostic:
		return "diagnostic"
	case UpdateProgress:
		return "progress"
	case UpdateFailure:
		return "failure"
	case UpdateResult:
		return "result"
	default:
		return "unknown"
	}
}

// Update is one event delivered to the caller while a run is in progress.
// Text is always set; the other fields depend on Kind.
type Update struct {
	Kind UpdateKind
	Text string

	Message *segment.Message        // UpdateMessage
	Node    progress.Node           // UpdateProgress, nil for raw status lines
	Err     error                   // UpdateFailure
	Result  *result.ExecutionResult // UpdateResult
}
