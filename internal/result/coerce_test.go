package result

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_FencedJSON(t *testing.T) {
	res := Coerce("```json\n[{\"name\":\"Step1\",\"description\":\"d\"}]\n```")

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Step1", res.Steps[0].Name)
	assert.Equal(t, "d", res.Steps[0].Description)
	assert.False(t, res.Fallback)
}

func TestCoerce_NotJSON(t *testing.T) {
	res := Coerce("not json at all")

	assert.Empty(t, res.Steps)
	assert.Equal(t, "not json at all", res.Summary)
	assert.True(t, res.Fallback)
}

func TestCoerce_NestedResourceString(t *testing.T) {
	raw := []any{
		map[string]any{
			"name":        "Load",
			"description": "load data",
			"resources":   `[{"name":"x","reason":"y"}]`,
		},
	}
	res := Coerce(raw)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, []Resource{{Name: "x", Reason: "y"}}, res.Steps[0].Resources)
}

func TestCoerce_NestedResourceStringInText(t *testing.T) {
	res := Coerce(`[{"name":"Load","description":"d","resources":"[{\"name\":\"x\",\"reason\":\"y\"}]"}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, []Resource{{Name: "x", Reason: "y"}}, res.Steps[0].Resources)
}

func TestCoerce_ResultShape(t *testing.T) {
	res := Coerce(`{
		"step": [
			{"name": "A", "description": "first", "cites": ["PMID:1"], "output_files": ["/tmp/a.png"]},
			{"name": "B", "description": "second", "result": 42}
		],
		"summary": "all done",
		"jupyter_notebook": "/tmp/run.ipynb"
	}`)

	want := ExecutionResult{
		Steps: []Step{
			{Name: "A", Description: "first", Citations: []string{"PMID:1"}, OutputFiles: []string{"/tmp/a.png"}},
			{Name: "B", Description: "second", Result: "42"},
		},
		Summary:      "all done",
		ArtifactPath: "/tmp/run.ipynb",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestCoerce_StepFieldAsString(t *testing.T) {
	res := Coerce(map[string]any{
		"steps":   `[{"name":"A","description":"a"},{"name":"B","description":"b"}]`,
		"summary": "ok",
	})

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "B", res.Steps[1].Name)
	assert.Equal(t, "ok", res.Summary)
}

func TestCoerce_SingleMappingWrapped(t *testing.T) {
	res := Coerce(`Here you go: {"name": "Only", "description": "one step"} hope that helps`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Only", res.Steps[0].Name)
	assert.False(t, res.Fallback)
}

func TestCoerce_SingleStepMappingInResult(t *testing.T) {
	res := Coerce(`{"step": {"name": "Solo", "description": "d"}, "summary": "s"}`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Solo", res.Steps[0].Name)
}

func TestCoerce_RecoveryChain(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"trailing commas", `[{"name": "S", "description": "d",},]`},
		{"smart quotes", `[{“name”: “S”, “description”: “d”}]`},
		{"smart quotes and commas", "```\n[{“name”: “S”, “description”: “d”,}]\n```"},
		{"python style", `[{'name': 'S', 'description': 'd', 'result': None}]`},
		{"yaml flow", `[{name: S, description: d}]`},
		{"fence with hint and prose", "Result below\n```python-json\n[{\"name\":\"S\",\"description\":\"d\"}]\n```\nthanks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Coerce(tt.in)
			require.False(t, res.Fallback, "fell back for %q", tt.in)
			require.Len(t, res.Steps, 1)
			assert.Equal(t, "S", res.Steps[0].Name)
			assert.Equal(t, "d", res.Steps[0].Description)
			assert.Empty(t, res.Steps[0].Result)
		})
	}
}

func TestCoerce_CurlyQuotesInsideValidJSON(t *testing.T) {
	res := Coerce(`[{"name": "Quote", "description": "he said “hi”"}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "he said “hi”", res.Steps[0].Description)
}

func TestCoerce_TrailingCommaInsideString(t *testing.T) {
	res := Coerce(`[{"name": "S", "description": "a,]", "result": "x",}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "a,]", res.Steps[0].Description)
	assert.Equal(t, "x", res.Steps[0].Result)
}

func TestCoerce_NullLiteralsAreAbsent(t *testing.T) {
	res := Coerce(`[{"name": "S", "description": "d", "result": "None", "stderr": "null", "cites": ["null", "PMID:2"], "resources": "None"}]`)

	require.Len(t, res.Steps, 1)
	s := res.Steps[0]
	assert.Empty(t, s.Result)
	assert.Empty(t, s.Stderr)
	assert.Nil(t, s.Resources)
	assert.Equal(t, []string{"PMID:2"}, s.Citations)
}

func TestCoerce_MissingRequiredFields(t *testing.T) {
	res := Coerce(`[{"result": "value"}, {"name": "Named"}, {"foo": 1}]`)

	require.Len(t, res.Steps, 3)

	assert.Equal(t, UnknownStepName, res.Steps[0].Name)
	assert.Equal(t, MissingDescriptionText, res.Steps[0].Description)
	assert.Equal(t, "value", res.Steps[0].Result)

	assert.Equal(t, "Named", res.Steps[1].Name)
	assert.Equal(t, MissingDescriptionText, res.Steps[1].Description)
	assert.Equal(t, `{"name":"Named"}`, res.Steps[1].Result)

	assert.Equal(t, UnknownStepName, res.Steps[2].Name)
	assert.Equal(t, `{"foo":1}`, res.Steps[2].Result)
}

func TestCoerce_ResourceForms(t *testing.T) {
	res := Coerce(map[string]any{
		"name":        "S",
		"description": "d",
		"resources": []any{
			map[string]any{"name": "pandas", "reason": "frames"},
			"numpy: arrays",
			"scanpy",
			map[string]any{"name": "", "reason": "dropped"},
			`{"name": "nested", "description": "from description"}`,
		},
	})

	require.Len(t, res.Steps, 1)
	want := []Resource{
		{Name: "pandas", Reason: "frames"},
		{Name: "numpy", Reason: "arrays"},
		{Name: "scanpy"},
		{Name: "nested", Reason: "from description"},
	}
	assert.Equal(t, want, res.Steps[0].Resources)
}

func TestCoerce_ResourceNameReasonMapping(t *testing.T) {
	res := Coerce(`[{"name":"S","description":"d","resources":{"b":"second","a":"first"}}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, []Resource{{"a", "first"}, {"b", "second"}}, res.Steps[0].Resources)
}

func TestCoerce_CitationsAlias(t *testing.T) {
	res := Coerce(`[{"name":"S","description":"d","citations":"[\"a\", \"b\"]"}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, []string{"a", "b"}, res.Steps[0].Citations)
}

func TestCoerce_ListElementAsEncodedText(t *testing.T) {
	res := Coerce([]any{
		`{"name": "Encoded", "description": "d"}`,
		map[string]any{"name": "Plain", "description": "d"},
	})

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "Encoded", res.Steps[0].Name)
	assert.Equal(t, "Plain", res.Steps[1].Name)
}

func TestCoerce_ListWithoutMappingsFallsBack(t *testing.T) {
	res := Coerce(`["a", "b"]`)

	assert.True(t, res.Fallback)
	assert.Empty(t, res.Steps)
	assert.Equal(t, `["a", "b"]`, res.Summary)
}

func TestCoerce_RetriesFromLaterOpener(t *testing.T) {
	res := Coerce(`Note [1]: {"name": "a", "description": "b"}`)

	require.False(t, res.Fallback)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "a", res.Steps[0].Name)
	assert.Equal(t, "b", res.Steps[0].Description)
}

func TestCoerce_GivesUpAfterOpenerLimit(t *testing.T) {
	in := strings.Repeat("[x] ", maxOpeners) + `{"name": "late", "description": "d"}`
	res := Coerce(in)

	assert.True(t, res.Fallback)
	assert.Equal(t, in, res.Summary)
}

func TestCoerce_EmptyInputs(t *testing.T) {
	assert.Equal(t, ExecutionResult{}, Coerce(nil))
	assert.Equal(t, ExecutionResult{}, Coerce(""))
	assert.Equal(t, ExecutionResult{}, Coerce("   \n"))
	assert.Equal(t, ExecutionResult{}, Coerce((*ExecutionResult)(nil)))

	res := Coerce("[]")
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Steps)
}

func TestCoerce_Unbalanced(t *testing.T) {
	in := `[{"name": "S", "description": "d"`
	res := Coerce(in)

	assert.True(t, res.Fallback)
	assert.Equal(t, in, res.Summary)
}

func TestCoerce_Bytes(t *testing.T) {
	raw := json.RawMessage(`{"summary": "from bytes"}`)
	assert.Equal(t, "from bytes", Coerce(raw).Summary)
	assert.Equal(t, "from bytes", Coerce([]byte(raw)).Summary)
}

func TestCoerce_TypedResultNormalized(t *testing.T) {
	in := ExecutionResult{
		Steps: []Step{
			{Name: "S", Description: "d", Result: "null", Citations: []string{"None", "c"}},
			{Name: "", Description: "no name"},
		},
		Summary:      "s",
		ArtifactPath: "None",
	}
	res := Coerce(&in)

	require.Len(t, res.Steps, 2)
	assert.Empty(t, res.Steps[0].Result)
	assert.Equal(t, []string{"c"}, res.Steps[0].Citations)
	assert.Equal(t, UnknownStepName, res.Steps[1].Name)
	assert.Equal(t, "no name", res.Steps[1].Description)
	assert.NotEmpty(t, res.Steps[1].Result)
	assert.Empty(t, res.ArtifactPath)
}

func TestCoerce_StructValue(t *testing.T) {
	type payload struct {
		Steps   []map[string]string `json:"steps"`
		Summary string              `json:"summary"`
	}
	res := Coerce(payload{
		Steps:   []map[string]string{{"name": "S", "description": "d"}},
		Summary: "typed",
	})

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "typed", res.Summary)
}

func TestCoerce_DeepNestingTerminates(t *testing.T) {
	inner := `[{"name":"x","reason":"y"}]`
	for i := 0; i < 20; i++ {
		b, err := json.Marshal([]string{inner})
		require.NoError(t, err)
		inner = string(b)
	}
	res := Coerce(map[string]any{"name": "S", "description": "d", "resources": inner})

	require.Len(t, res.Steps, 1)
	require.Len(t, res.Steps[0].Resources, 1)
	assert.NotEqual(t, "x", res.Steps[0].Resources[0].Name)

	shallow := `[{"name":"x","reason":"y"}]`
	for i := 0; i < 3; i++ {
		b, err := json.Marshal([]string{shallow})
		require.NoError(t, err)
		shallow = string(b)
	}
	res = Coerce(map[string]any{"name": "S", "description": "d", "resources": shallow})
	assert.Equal(t, []Resource{{Name: "x", Reason: "y"}}, res.Steps[0].Resources)
}

func TestCoerce_Numbers(t *testing.T) {
	res := Coerce(`[{"name": 1, "description": 2.5, "result": true}]`)

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "1", res.Steps[0].Name)
	assert.Equal(t, "2.5", res.Steps[0].Description)
	assert.Equal(t, "true", res.Steps[0].Result)
}

func TestRemoveTrailingCommas(t *testing.T) {
	assert.Equal(t, `{"a": [1, 2]}`, removeTrailingCommas(`{"a": [1, 2,],}`))
	assert.Equal(t, `{"a": "x,}"}`, removeTrailingCommas(`{"a": "x,}"}`))
	assert.Equal(t, `{"a": "q\",]"}`, removeTrailingCommas(`{"a": "q\",]"}`))
}

func TestSliceStructure(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, sliceStructure(`prefix {"a": 1} suffix`))
	assert.Equal(t, `[1, [2]]`, sliceStructure(`x [1, [2]] y`))
	assert.Equal(t, "", sliceStructure("no structure"))
}

func TestOutputFiles(t *testing.T) {
	res := ExecutionResult{
		ArtifactPath: "/nb.ipynb",
		Steps: []Step{
			{OutputFiles: []string{"/a.png", "/nb.ipynb"}},
			{OutputFiles: []string{"/b.csv", "/a.png"}},
		},
	}
	assert.Equal(t, []string{"/nb.ipynb", "/a.png", "/b.csv"}, res.OutputFiles())
}

func TestResourceString(t *testing.T) {
	assert.Equal(t, "x: y", Resource{Name: "x", Reason: "y"}.String())
	assert.Equal(t, "x: no reason provided", Resource{Name: "x"}.String())
}
