package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/fanout/internal/model"
)

func TestScalar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.c", "src/main.c"},
		{"qualified name", "geo::add", `"geo::add"`},
		{"template", "std::vector<int>", `"std::vector<int>"`},
		{"signature no special", "int main()", "int main()"},
		{"pointer signature", "const char *name(void)", "const char *name(void)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scalar(tt.in)
			if got != tt.want {
				t.Errorf("scalar(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	s := &model.Summary{
		Root:  "myrepo",
		Units: 2,
		Functions: []model.FunctionInfo{
			{
				Name:      "helper",
				Signature: "int helper(int)",
				Unit:      "src/util.c",
				Fanout:    0,
				Fanin:     1,
				Rank:      0.75,
			},
			{
				Name:      "geo::add",
				Signature: "int geo::add(int, int)",
				Unit:      "src/main.cpp",
				Fanout:    1,
				Fanin:     0,
				Rank:      0.25,
			},
		},
		Calls: []model.CallEdge{
			{Caller: "geo::add", Callee: "helper", Count: 2},
		},
	}

	got := Encode(s)

	want := []string{
		"root: myrepo",
		"units: 2",
		"functions[2]{name,signature,unit,fanout,fanin,rank}:",
		"  helper,int helper(int),src/util.c,0,1,0.7500",
		`  "geo::add","int geo::add(int, int)",src/main.cpp,1,0,0.2500`,
		"calls[1]{caller,callee,count}:",
		`  "geo::add",helper,2`,
	}
	lines := strings.Split(got, "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.Summary{Root: "empty"})
	if !strings.Contains(got, "functions[0]{name,signature,unit,fanout,fanin,rank}:") {
		t.Errorf("expected empty functions section, got:\n%s", got)
	}
	if !strings.Contains(got, "calls[0]{caller,callee,count}:") {
		t.Errorf("expected empty calls section, got:\n%s", got)
	}
}
