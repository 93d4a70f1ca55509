// Package ranking narrows a ranked summary to the functions worth reading.
package ranking

import (
	"strings"

	"github.com/phobologic/fanout/internal/model"
)

// SelectFunctions returns a new Summary with only the top-ranked functions
// and the call edges leaving them. Functions must already be sorted by rank.
// If maxFunctions is <= 0 or >= len(functions), the summary is returned as is.
func SelectFunctions(s *model.Summary, maxFunctions int) *model.Summary {
	if maxFunctions <= 0 || maxFunctions >= len(s.Functions) {
		return s
	}

	selected := s.Functions[:maxFunctions]
	names := make(map[string]struct{}, maxFunctions)
	for i := range selected {
		names[selected[i].Name] = struct{}{}
	}

	var calls []model.CallEdge
	for i := range s.Calls {
		ce := &s.Calls[i]
		if _, ok := names[ce.Caller]; ok {
			calls = append(calls, *ce)
		}
	}

	return &model.Summary{
		Root:      s.Root,
		Units:     s.Units,
		Functions: selected,
		Calls:     calls,
	}
}

// FilterByName returns a new Summary containing the functions whose name
// contains substr (case-insensitive), their direct callers and callees, and
// the edges touching a matched function.
func FilterByName(s *model.Summary, substr string) *model.Summary {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for i := range s.Functions {
		if strings.Contains(strings.ToLower(s.Functions[i].Name), lower) {
			matched[s.Functions[i].Name] = struct{}{}
		}
	}

	related := make(map[string]struct{})
	var calls []model.CallEdge
	for i := range s.Calls {
		ce := &s.Calls[i]
		_, callerOK := matched[ce.Caller]
		_, calleeOK := matched[ce.Callee]
		if callerOK {
			related[ce.Callee] = struct{}{}
		}
		if calleeOK {
			related[ce.Caller] = struct{}{}
		}
		if callerOK || calleeOK {
			calls = append(calls, *ce)
		}
	}

	var functions []model.FunctionInfo
	for i := range s.Functions {
		name := s.Functions[i].Name
		_, isMatched := matched[name]
		_, isRelated := related[name]
		if isMatched || isRelated {
			functions = append(functions, s.Functions[i])
		}
	}

	return &model.Summary{
		Root:      s.Root,
		Units:     s.Units,
		Functions: functions,
		Calls:     calls,
	}
}

// FilterByUnit returns a new Summary containing only functions defined in
// units whose path contains substr (case-insensitive), with the call edges
// leaving them.
func FilterByUnit(s *model.Summary, substr string) *model.Summary {
	lower := strings.ToLower(substr)

	names := make(map[string]struct{})
	var functions []model.FunctionInfo
	for i := range s.Functions {
		if strings.Contains(strings.ToLower(s.Functions[i].Unit), lower) {
			names[s.Functions[i].Name] = struct{}{}
			functions = append(functions, s.Functions[i])
		}
	}

	var calls []model.CallEdge
	for i := range s.Calls {
		ce := &s.Calls[i]
		if _, ok := names[ce.Caller]; ok {
			calls = append(calls, *ce)
		}
	}

	return &model.Summary{
		Root:      s.Root,
		Units:     s.Units,
		Functions: functions,
		Calls:     calls,
	}
}
