package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentpipe/internal/protocol"
	"agentpipe/internal/result"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testCommand points the global flags at a temp workspace and returns a
// command whose output is captured.
func testCommand(t *testing.T, input string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	workspace = t.TempDir()
	plain = true
	t.Cleanup(func() {
		workspace = ""
		plain = false
		jsonOutput = false
		runTitle = ""
	})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(input))
	return cmd, &out
}

func sampleOutput() string {
	p := protocol.Default()
	return strings.Join([]string{
		"preamble",
		p.AgentMarker,
		"Checking the data.",
		"<execute>",
		"print(1)",
		"</execute>",
		p.AgentMarker,
		"<observation>1</observation>",
	}, "\n")
}

func TestParseCmd(t *testing.T) {
	cmd, out := testCommand(t, sampleOutput())

	require.NoError(t, parseMessages(cmd, []string{"-"}))

	got := out.String()
	assert.NotContains(t, got, "preamble")
	assert.Contains(t, got, "Checking the data.")
	assert.Contains(t, got, "print(1)")
	assert.Contains(t, got, "**📊 Observation:**")
}

func TestParseCmd_JSON(t *testing.T) {
	cmd, out := testCommand(t, sampleOutput())
	jsonOutput = true

	require.NoError(t, parseMessages(cmd, nil))

	var docs []messageJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "text", docs[0].Blocks[0].Kind)
	assert.Equal(t, "code", docs[0].Blocks[1].Kind)
	assert.Equal(t, "observation", docs[1].Blocks[0].Kind)
	assert.Equal(t, "1", docs[1].Blocks[0].Content)
}

func TestCoerceCmd(t *testing.T) {
	cmd, out := testCommand(t, "```json\n{\"step\": [{\"name\": \"Load\", \"description\": \"d\", \"output_files\": [\"a.csv\"]}], \"summary\": \"done\",}\n```")

	require.NoError(t, coercePayload(cmd, nil))

	got := out.String()
	assert.Contains(t, got, "### 1. Load")
	assert.Contains(t, got, "## Summary\n\ndone")
	assert.Contains(t, got, "Output files:\n  a.csv\n")
}

func TestCoerceCmd_JSONFromFile(t *testing.T) {
	cmd, out := testCommand(t, "")
	jsonOutput = true

	path := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte("not structured at all"), 0644))

	require.NoError(t, coercePayload(cmd, []string{path}))

	var res result.ExecutionResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Empty(t, res.Steps)
	assert.Equal(t, "not structured at all", res.Summary)
}

func TestCoerceCmd_MissingFile(t *testing.T) {
	cmd, _ := testCommand(t, "")
	err := coercePayload(cmd, []string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestReplayCmd(t *testing.T) {
	cmd, out := testCommand(t, "")
	jsonOutput = true

	p := protocol.Default()
	transcript := strings.Join([]string{
		"[BIOMNI] Starting analysis",
		p.AgentMarker,
		"<solution>done</solution>",
		`[RESULT] {"step": [{"name": "A", "description": "a"}], "summary": "all good"}`,
	}, "\n")
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0644))

	require.NoError(t, replayTranscript(cmd, []string{path}))

	var res result.ExecutionResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "all good", res.Summary)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "A", res.Steps[0].Name)
}

func TestReplayCmd_MissingTranscript(t *testing.T) {
	cmd, _ := testCommand(t, "")
	err := replayTranscript(cmd, []string{filepath.Join(t.TempDir(), "nope.log")})
	assert.Error(t, err)
}
