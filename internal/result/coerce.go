package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"agentpipe/internal/logging"

	"gopkg.in/yaml.v3"
)

// maxDepth bounds recursive decoding of structure nested inside strings.
const maxDepth = 8

// maxOpeners bounds how many '[' or '{' positions a payload is decoded
// from before it is treated as plain text.
const maxOpeners = 8

// Coerce turns a terminal payload into an ExecutionResult. It never fails:
// input that cannot be decoded comes back with no steps, the raw text in
// Summary and Fallback set.
//
// Text goes through an increasingly permissive chain: code fences are
// stripped, the text is cut to the outermost list or mapping, trailing
// commas are removed, typographic quotes are straightened, and finally
// YAML flow syntax is tried. Strings inside the decoded value that are
// themselves encoded structure are decoded before use.
func Coerce(raw any) (res ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.CoerceWarn("Coercion panicked, falling back: %v", r)
			res = fallback(rawText(raw))
		}
	}()

	switch v := raw.(type) {
	case nil:
		return ExecutionResult{}
	case ExecutionResult:
		return normalize(v)
	case *ExecutionResult:
		if v == nil {
			return ExecutionResult{}
		}
		return normalize(*v)
	case string:
		return coerceText(v)
	case []byte:
		return coerceText(string(v))
	case json.RawMessage:
		return coerceText(string(v))
	case map[string]any, []any:
		if out, ok := fromValue(v); ok {
			return out
		}
		return fallback(compact(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fallback(fmt.Sprint(v))
		}
		return coerceText(string(data))
	}
}

func coerceText(raw string) ExecutionResult {
	if strings.TrimSpace(raw) == "" {
		return ExecutionResult{}
	}
	text := stripFences(raw)
	for i, tries := 0, 0; tries < maxOpeners; tries++ {
		k := strings.IndexAny(text[i:], "[{")
		if k < 0 {
			break
		}
		start := i + k
		if v, ok := decodeBody(sliceStructure(text[start:])); ok {
			if out, ok := fromValue(v); ok {
				logging.CoerceDebug("Decoded payload at offset %d: %d steps, summary %d bytes", start, len(out.Steps), len(out.Summary))
				return out
			}
		}
		i = start + 1
	}
	return fallback(raw)
}

func fallback(raw string) ExecutionResult {
	logging.CoerceWarn("Payload could not be decoded (%d bytes), keeping raw text", len(raw))
	return ExecutionResult{Summary: raw, Fallback: true}
}

func rawText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case nil:
		return ""
	}
	return compact(raw)
}

// decodeText runs the recovery chain on text and returns the first value
// that decodes.
func decodeText(raw string) (any, bool) {
	return decodeBody(sliceStructure(stripFences(raw)))
}

// decodeBody tries JSON, then JSON with repairs, then YAML flow syntax.
func decodeBody(body string) (any, bool) {
	if body == "" {
		return nil, false
	}

	if v, err := decodeJSON(body); err == nil {
		return v, true
	}
	uncomma := removeTrailingCommas(body)
	if v, err := decodeJSON(uncomma); err == nil {
		logging.CoerceDebug("Decoded after removing trailing commas")
		return v, true
	}
	quoted := removeTrailingCommas(normalizeQuotes(body))
	if v, err := decodeJSON(quoted); err == nil {
		logging.CoerceDebug("Decoded after normalizing quotes")
		return v, true
	}

	var v any
	if err := yaml.Unmarshal([]byte(quoted), &v); err != nil {
		logging.CoerceDebug("YAML decode failed: %v", err)
		return nil, false
	}
	switch v.(type) {
	case map[string]any, map[any]any, []any:
		logging.CoerceDebug("Decoded as YAML flow syntax")
		return v, true
	}
	return nil, false
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after value")
	}
	return v, nil
}

// fromValue maps a decoded value onto the result model. A mapping with a
// step list is the full result; any other mapping is a single step; a list
// is the step list and must hold at least one mapping unless it is empty.
func fromValue(v any) (ExecutionResult, bool) {
	switch t := v.(type) {
	case map[string]any:
		if isResultShape(t) {
			return resultFrom(t), true
		}
		return ExecutionResult{Steps: []Step{stepFrom(t, 0)}}, true
	case map[any]any:
		return fromValue(stringKeys(t))
	case []any:
		steps, mapped := stepsFromList(t, 0)
		if len(t) > 0 && mapped == 0 {
			return ExecutionResult{}, false
		}
		return ExecutionResult{Steps: steps}, true
	}
	return ExecutionResult{}, false
}

func isResultShape(m map[string]any) bool {
	if _, ok := first(m, "step", "steps"); ok {
		return true
	}
	_, hasName := m["name"]
	_, hasSummary := m["summary"]
	return hasSummary && !hasName
}

func resultFrom(m map[string]any) ExecutionResult {
	var out ExecutionResult
	if v, ok := first(m, "step", "steps"); ok {
		out.Steps = stepsFrom(v, 0)
	}
	out.Summary = text(m["summary"])
	for _, key := range []string{"jupyter_notebook", "generated_artifact_path", "artifact", "notebook"} {
		if p := text(m[key]); p != "" {
			out.ArtifactPath = p
			break
		}
	}
	return out
}

func stepsFrom(v any, depth int) []Step {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []Step{stepFrom(t, depth)}
	case map[any]any:
		return []Step{stepFrom(stringKeys(t), depth)}
	case []any:
		steps, _ := stepsFromList(t, depth)
		return steps
	case string:
		if decoded, ok := nested(t, depth); ok {
			return stepsFrom(decoded, depth+1)
		}
		if s := text(t); s != "" {
			return []Step{placeholderStep(s)}
		}
		return nil
	}
	if s := text(v); s != "" {
		return []Step{placeholderStep(s)}
	}
	return nil
}

// stepsFromList also reports how many steps came from mappings.
func stepsFromList(list []any, depth int) ([]Step, int) {
	var steps []Step
	mapped := 0
	for _, el := range list {
		switch t := el.(type) {
		case map[string]any:
			steps = append(steps, stepFrom(t, depth))
			mapped++
		case map[any]any:
			steps = append(steps, stepFrom(stringKeys(t), depth))
			mapped++
		case string:
			if decoded, ok := nested(t, depth); ok {
				sub := stepsFrom(decoded, depth+1)
				steps = append(steps, sub...)
				mapped += len(sub)
				continue
			}
			if s := text(t); s != "" {
				steps = append(steps, placeholderStep(s))
			}
		case nil:
		default:
			if s := text(t); s != "" {
				steps = append(steps, placeholderStep(s))
			}
		}
	}
	return steps, mapped
}

func placeholderStep(raw string) Step {
	return Step{Name: UnknownStepName, Description: MissingDescriptionText, Result: raw}
}

// stepFrom builds a step from a mapping. Missing name or description get
// placeholders, and the raw mapping is kept in Result if nothing else is.
func stepFrom(m map[string]any, depth int) Step {
	s := Step{
		Name:        text(m["name"]),
		Description: text(m["description"]),
		Resources:   resourcesFrom(m["resources"], depth),
		Result:      text(m["result"]),
		Stdout:      rawString(m["stdout"]),
		Stderr:      rawString(m["stderr"]),
	}
	if v, ok := first(m, "cites", "citations"); ok {
		s.Citations = stringsFrom(v, depth)
	}
	if v, ok := first(m, "output_files", "outputs"); ok {
		s.OutputFiles = stringsFrom(v, depth)
	}

	if s.Name == "" || s.Description == "" {
		if s.Result == "" {
			s.Result = compact(m)
		}
		if s.Name == "" {
			s.Name = UnknownStepName
		}
		if s.Description == "" {
			s.Description = MissingDescriptionText
		}
	}
	return s
}

func resourcesFrom(v any, depth int) []Resource {
	var out []Resource
	add := func(r Resource) {
		if r.Name != "" {
			out = append(out, r)
		}
	}

	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if decoded, ok := nested(t, depth); ok {
			return resourcesFrom(decoded, depth+1)
		}
		add(resourceFromString(t))
	case map[any]any:
		return resourcesFrom(stringKeys(t), depth)
	case map[string]any:
		if _, ok := t["name"]; ok {
			add(resourceFromMap(t))
			break
		}
		// {"pandas": "dataframes", ...}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(Resource{Name: strings.TrimSpace(k), Reason: text(t[k])})
		}
	case []any:
		for _, el := range t {
			switch e := el.(type) {
			case map[string]any:
				add(resourceFromMap(e))
			case map[any]any:
				add(resourceFromMap(stringKeys(e)))
			case string:
				if decoded, ok := nested(e, depth); ok {
					out = append(out, resourcesFrom(decoded, depth+1)...)
					continue
				}
				add(resourceFromString(e))
			default:
				add(Resource{Name: text(e)})
			}
		}
	default:
		add(Resource{Name: text(t)})
	}
	return out
}

func resourceFromMap(m map[string]any) Resource {
	r := Resource{Name: text(m["name"])}
	if v, ok := first(m, "reason", "description"); ok {
		r.Reason = text(v)
	}
	return r
}

// resourceFromString accepts "name: reason" or a bare name.
func resourceFromString(s string) Resource {
	s = text(s)
	if name, reason, ok := strings.Cut(s, ": "); ok {
		return Resource{Name: strings.TrimSpace(name), Reason: text(reason)}
	}
	return Resource{Name: s}
}

func stringsFrom(v any, depth int) []string {
	var out []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if decoded, ok := nested(t, depth); ok {
			return stringsFrom(decoded, depth+1)
		}
		if s := text(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok {
				if decoded, ok := nested(s, depth); ok {
					out = append(out, stringsFrom(decoded, depth+1)...)
					continue
				}
			}
			if s := text(el); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := text(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nested decodes a string holding encoded structure, within the depth
// limit.
func nested(s string, depth int) (any, bool) {
	if depth >= maxDepth || !looksStructured(s) {
		return nil, false
	}
	return decodeText(s)
}

// text renders a scalar field. Null spellings become "", nested values
// become compact JSON.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if isNullLiteral(s) {
			return ""
		}
		return s
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, map[any]any, []any:
		return compact(t)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// rawString is text without trimming, for captured output.
func rawString(v any) string {
	if s, ok := v.(string); ok {
		if isNullLiteral(s) {
			return ""
		}
		return strings.TrimRight(s, "\r\n")
	}
	return text(v)
}

func compact(v any) string {
	if m, ok := v.(map[any]any); ok {
		v = stringKeys(m)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringKeys(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner, ok := v.(map[any]any); ok {
			v = stringKeys(inner)
		}
		out[fmt.Sprint(k)] = v
	}
	return out
}

// normalize applies the field policy to a result that arrived typed.
func normalize(in ExecutionResult) ExecutionResult {
	out := ExecutionResult{
		Summary:      text(in.Summary),
		ArtifactPath: text(in.ArtifactPath),
		Fallback:     in.Fallback,
	}
	for _, s := range in.Steps {
		out.Steps = append(out.Steps, normalizeStep(s))
	}
	return out
}

func normalizeStep(s Step) Step {
	n := Step{
		Name:        text(s.Name),
		Description: text(s.Description),
		Result:      text(s.Result),
		Stdout:      rawString(s.Stdout),
		Stderr:      rawString(s.Stderr),
	}
	for _, r := range s.Resources {
		if name := text(r.Name); name != "" {
			n.Resources = append(n.Resources, Resource{Name: name, Reason: text(r.Reason)})
		}
	}
	for _, c := range s.Citations {
		if c = text(c); c != "" {
			n.Citations = append(n.Citations, c)
		}
	}
	for _, f := range s.OutputFiles {
		if f = text(f); f != "" {
			n.OutputFiles = append(n.OutputFiles, f)
		}
	}
	if n.Name == "" || n.Description == "" {
		if n.Result == "" {
			n.Result = compact(s)
		}
		if n.Name == "" {
			n.Name = UnknownStepName
		}
		if n.Description == "" {
			n.Description = MissingDescriptionText
		}
	}
	return n
}
