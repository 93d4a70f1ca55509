// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/fanout/internal/model"
)

var (
	numeric  = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords = map[string]bool{"true": true, "false": true, "null": true}
	escaper  = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
)

// structural characters that force a cell into quotes
const special = `,:"\{}[]`

// table is a uniform array of rows sharing one column header.
type table struct {
	name    string
	columns []string
	rows    [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(b *strings.Builder) {
	fmt.Fprintf(b, "\n%s[%d]{%s}:", t.name, len(t.rows), strings.Join(t.columns, ","))
	for _, row := range t.rows {
		b.WriteString("\n  ")
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(scalar(cell))
		}
	}
}

// Encode converts a Summary into TOON format.
func Encode(s *model.Summary) string {
	functions := &table{name: "functions", columns: []string{"name", "signature", "unit", "fanout", "fanin", "rank"}}
	for _, f := range s.Functions {
		functions.add(f.Name, f.Signature, f.Unit,
			strconv.Itoa(f.Fanout), strconv.Itoa(f.Fanin), strconv.FormatFloat(f.Rank, 'f', 4, 64))
	}
	calls := &table{name: "calls", columns: []string{"caller", "callee", "count"}}
	for _, c := range s.Calls {
		calls.add(c.Caller, c.Callee, strconv.Itoa(c.Count))
	}

	var b strings.Builder
	b.WriteString("root: " + scalar(s.Root))
	b.WriteString("\nunits: " + strconv.Itoa(s.Units))
	functions.write(&b)
	calls.write(&b)
	return b.String()
}

// scalar renders one value, quoting it only when a bare form would be
// ambiguous.
func scalar(v string) string {
	if bare(v) {
		return v
	}
	return `"` + escaper.Replace(v) + `"`
}

func bare(v string) bool {
	switch {
	case v == "", v != strings.TrimSpace(v), strings.ContainsAny(v, "\n\r\t"):
		return false
	case keywords[strings.ToLower(v)]:
		return false
	case numeric.MatchString(v):
		return true
	}
	return !strings.ContainsAny(v, special) && !strings.HasPrefix(v, "-")
}
