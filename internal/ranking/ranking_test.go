package ranking

import (
	"testing"

	"github.com/phobologic/fanout/internal/model"
)

func makeSummary() *model.Summary {
	return &model.Summary{
		Root:  "test",
		Units: 2,
		Functions: []model.FunctionInfo{
			{Name: "util::log", Unit: "src/util.c", Rank: 0.5},
			{Name: "parse", Unit: "src/parse.c", Rank: 0.3},
			{Name: "main", Unit: "src/main.c", Rank: 0.2},
		},
		Calls: []model.CallEdge{
			{Caller: "main", Callee: "parse", Count: 1},
			{Caller: "main", Callee: "util::log", Count: 2},
			{Caller: "parse", Callee: "util::log", Count: 4},
		},
	}
}

func TestSelectFunctionsAll(t *testing.T) {
	t.Parallel()

	s := makeSummary()
	if got := SelectFunctions(s, 0); got != s {
		t.Error("maxFunctions=0 should return original")
	}
	if got := SelectFunctions(s, 5); got != s {
		t.Error("maxFunctions > len should return original")
	}
	if got := SelectFunctions(s, 3); got != s {
		t.Error("maxFunctions == len should return original")
	}
}

func TestSelectFunctionsSubset(t *testing.T) {
	t.Parallel()

	got := SelectFunctions(makeSummary(), 2)

	if len(got.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(got.Functions))
	}
	if got.Functions[0].Name != "util::log" || got.Functions[1].Name != "parse" {
		t.Errorf("unexpected selection: %+v", got.Functions)
	}

	// Only edges leaving a selected function survive
	if len(got.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(got.Calls))
	}
	if got.Calls[0].Caller != "parse" {
		t.Errorf("unexpected call: %+v", got.Calls[0])
	}
	if got.Units != 2 || got.Root != "test" {
		t.Errorf("header fields not carried over: %+v", got)
	}
}

func TestFilterByName(t *testing.T) {
	t.Parallel()

	got := FilterByName(makeSummary(), "PARSE")

	if len(got.Functions) != 3 {
		t.Fatalf("expected parse plus its caller and callee, got %+v", got.Functions)
	}
	if len(got.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %+v", got.Calls)
	}
	for _, c := range got.Calls {
		if c.Caller != "parse" && c.Callee != "parse" {
			t.Errorf("call does not touch parse: %+v", c)
		}
	}
}

func TestFilterByNameNoMatch(t *testing.T) {
	t.Parallel()

	got := FilterByName(makeSummary(), "nothing")
	if len(got.Functions) != 0 || len(got.Calls) != 0 {
		t.Errorf("expected empty summary, got %+v", got)
	}
}

func TestFilterByUnit(t *testing.T) {
	t.Parallel()

	got := FilterByUnit(makeSummary(), "main.c")

	if len(got.Functions) != 1 || got.Functions[0].Name != "main" {
		t.Fatalf("expected only main, got %+v", got.Functions)
	}
	if len(got.Calls) != 2 {
		t.Errorf("expected the 2 calls leaving main, got %+v", got.Calls)
	}
}
