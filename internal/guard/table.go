// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package guard

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Rule binds a path pattern to a Requirement. Patterns use '/' as the
// separator: "*" matches one segment and "**" any number of them.
type Rule struct {
	Pattern     string
	Requirement Requirement
}

type compiledRule struct {
	pattern string
	glob    glob.Glob
	req     Requirement
}

// Table maps request paths to requirements. It is immutable once built.
type Table struct {
	rules []compiledRule
}

// NewTable compiles rules. The first matching rule wins.
func NewTable(rules ...Rule) (*Table, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		g, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, oops.In("guard").
				Code("GUARD_INVALID_PATTERN").
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{pattern: r.Pattern, glob: g, req: r.Requirement})
	}
	return &Table{rules: compiled}, nil
}

// Lookup returns the requirement for path. ok is false for unprotected paths.
func (t *Table) Lookup(path string) (req Requirement, ok bool) {
	for _, r := range t.rules {
		if r.glob.Match(path) {
			return r.req, true
		}
	}
	return Requirement{}, false
}
