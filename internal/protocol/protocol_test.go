package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	p, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, p.Version)
	assert.NoError(t, p.Validate())

	_, err = Lookup("v999")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	p := Default()
	p.StatusPrefixes[0] = "[MUTATED]"

	again := Default()
	assert.Equal(t, "[BIOMNI]", again.StatusPrefixes[0])
}

func TestValidate(t *testing.T) {
	base := Default()

	t.Run("empty agent marker", func(t *testing.T) {
		p := base
		p.AgentMarker = "  "
		assert.ErrorIs(t, p.Validate(), ErrEmptyMarker)
	})

	t.Run("overlapping markers", func(t *testing.T) {
		p := base
		p.EchoMarker = p.AgentMarker
		assert.ErrorIs(t, p.Validate(), ErrMarkerCollision)
	})

	t.Run("duplicate tags", func(t *testing.T) {
		p := base
		p.Tags.Solution = p.Tags.Execute
		assert.ErrorIs(t, p.Validate(), ErrMarkerCollision)
	})

	t.Run("tag with angle bracket", func(t *testing.T) {
		p := base
		p.Tags.Observation = "<obs>"
		assert.Error(t, p.Validate())
	})
}

func TestMerge(t *testing.T) {
	p := Default().Merge(Protocol{
		AgentMarker: "=== AGENT ===",
		Tags:        Tags{Execute: "run"},
	})

	assert.Equal(t, "=== AGENT ===", p.AgentMarker)
	assert.Equal(t, Default().EchoMarker, p.EchoMarker)
	assert.Equal(t, "run", p.Tags.Execute)
	assert.Equal(t, "solution", p.Tags.Solution)
}

func TestCleanLine(t *testing.T) {
	p := Default()

	tests := []struct {
		in   string
		want string
		kind LineKind
	}{
		{"[BIOMNI] Starting analysis", "Starting analysis", LineStatus},
		{"[LOG] step one", "step one", LineStatus},
		{"[RESULT] {\"summary\": \"x\"}", "{\"summary\": \"x\"}", LineResult},
		{"[ERROR] boom", "ERROR: boom", LineError},
		{"  plain text  ", "  plain text", LinePayload},
		{"    indented()", "    indented()", LinePayload},
		{"  [LOG] padded", "padded", LineStatus},
	}

	for _, tt := range tests {
		got, kind := p.CleanLine(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
	}
}
