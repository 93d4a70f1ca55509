package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/fanout/internal/model"
)

func sig(name, ret string, params ...string) model.Signature {
	return model.Signature{Name: name, ReturnType: ret, Params: params}
}

func TestWriterAddHelperDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginSource())
	require.NoError(t, w.AddDefinition(sig("add", "int", "int", "int")))
	require.NoError(t, w.AddCallee(sig("helper", "int", "int")))
	require.NoError(t, w.EndDefinition())
	require.NoError(t, w.AddDefinition(sig("helper", "int", "int")))
	require.NoError(t, w.EndDefinition())
	require.NoError(t, w.EndSource())

	want := `[
  {"name": "add", "returnType": "int", "params": ["int", "int"], "callees": [
    {"name": "helper", "returnType": "int", "params": ["int"]}
  ]},
  {"name": "helper", "returnType": "int", "params": ["int"], "callees": []}
]
`
	assert.Equal(t, want, buf.String())
	assert.Equal(t, SourceClosed, w.State())
}

func TestWriterEmptySource(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginSource())
	require.NoError(t, w.EndSource())

	assert.Equal(t, "[]\n", buf.String())
	var v []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	assert.Empty(t, v)
}

func TestWriterDuplicateCalleesKept(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginSource())
	require.NoError(t, w.AddDefinition(sig("main", "int")))
	for range 3 {
		require.NoError(t, w.AddCallee(sig("tick", "void")))
	}
	require.NoError(t, w.EndDefinition())
	require.NoError(t, w.EndSource())

	defs, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Len(t, defs[0].Callees, 3)
	assert.Equal(t, []string{}, defs[0].Params)
}

func TestWriterDoesNotEscapeHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginSource())
	require.NoError(t, w.AddDefinition(sig("sum", "int", "const std::vector<int> &", `char "q"`)))
	require.NoError(t, w.EndDefinition())
	require.NoError(t, w.EndSource())

	assert.Contains(t, buf.String(), `"const std::vector<int> &"`)
	assert.Contains(t, buf.String(), `"char \"q\""`)

	defs, err := Decode(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, []string{"const std::vector<int> &", `char "q"`}, defs[0].Params)
}

// Every flush point must be a prefix of the final document, and closing
// whatever is open at that point must yield valid JSON.
func TestWriterFlushedPrefixes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	var prefixes []string
	flush := func() {
		require.NoError(t, w.Flush())
		prefixes = append(prefixes, buf.String())
	}

	require.NoError(t, w.BeginSource())
	flush()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, w.AddDefinition(sig(name, "void")))
		require.NoError(t, w.AddCallee(sig("x", "void")))
		flush()
		require.NoError(t, w.EndDefinition())
		flush()
	}
	require.NoError(t, w.EndSource())

	final := buf.String()
	for _, p := range prefixes {
		assert.True(t, strings.HasPrefix(final, p))
	}

	var defs []model.Definition
	require.NoError(t, json.Unmarshal([]byte(final), &defs))
	require.Len(t, defs, 3)
	assert.Equal(t, "c", defs[2].Name)

	// A prefix taken between definitions only lacks the container's close.
	var partial []model.Definition
	require.NoError(t, json.Unmarshal([]byte(prefixes[2]+"\n]"), &partial))
	assert.Len(t, partial, 1)
}

func TestWriterUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(w *Writer)
		call  func(w *Writer)
		op    string
		state State
	}{
		{
			name:  "begin twice",
			setup: func(w *Writer) { _ = w.BeginSource() },
			call:  func(w *Writer) { _ = w.BeginSource() },
			op:    "BeginSource",
			state: SourceOpen,
		},
		{
			name:  "definition before begin",
			setup: func(*Writer) {},
			call:  func(w *Writer) { _ = w.AddDefinition(sig("f", "void")) },
			op:    "AddDefinition",
			state: NotStarted,
		},
		{
			name: "nested definition",
			setup: func(w *Writer) {
				_ = w.BeginSource()
				_ = w.AddDefinition(sig("f", "void"))
			},
			call:  func(w *Writer) { _ = w.AddDefinition(sig("g", "void")) },
			op:    "AddDefinition",
			state: DefinitionOpen,
		},
		{
			name:  "callee outside definition",
			setup: func(w *Writer) { _ = w.BeginSource() },
			call:  func(w *Writer) { _ = w.AddCallee(sig("g", "void")) },
			op:    "AddCallee",
			state: SourceOpen,
		},
		{
			name:  "end definition without one",
			setup: func(w *Writer) { _ = w.BeginSource() },
			call:  func(w *Writer) { _ = w.EndDefinition() },
			op:    "EndDefinition",
			state: SourceOpen,
		},
		{
			name: "end source with open definition",
			setup: func(w *Writer) {
				_ = w.BeginSource()
				_ = w.AddDefinition(sig("f", "void"))
			},
			call:  func(w *Writer) { _ = w.EndSource() },
			op:    "EndSource",
			state: DefinitionOpen,
		},
		{
			name: "end source twice",
			setup: func(w *Writer) {
				_ = w.BeginSource()
				_ = w.EndSource()
			},
			call:  func(w *Writer) { _ = w.EndSource() },
			op:    "EndSource",
			state: SourceClosed,
		},
		{
			name: "definition after close",
			setup: func(w *Writer) {
				_ = w.BeginSource()
				_ = w.EndSource()
			},
			call:  func(w *Writer) { _ = w.AddDefinition(sig("f", "void")) },
			op:    "AddDefinition",
			state: SourceClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := NewWriter(&bytes.Buffer{})
			tt.setup(w)
			want := (&UsageError{Op: tt.op, State: tt.state}).Error()
			assert.PanicsWithError(t, want, func() { tt.call(w) })
		})
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestWriterStickyIOError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	w := NewWriter(failingWriter{err: boom})
	require.NoError(t, w.BeginSource())
	require.NoError(t, w.AddDefinition(sig("f", "void")))

	err := w.Flush()
	require.ErrorIs(t, err, boom)

	// State keeps advancing so the sequence can still be closed cleanly.
	assert.ErrorIs(t, w.AddCallee(sig("g", "void")), boom)
	assert.ErrorIs(t, w.EndDefinition(), boom)
	assert.ErrorIs(t, w.EndSource(), boom)
	assert.Equal(t, SourceClosed, w.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DefinitionOpen", DefinitionOpen.String())
	assert.Equal(t, "State(9)", State(9).String())
}
