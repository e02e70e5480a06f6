package cleanup

import (
	"regexp"
	"strings"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// InvalidPattern records a skip pattern that failed to compile.
type InvalidPattern struct {
	Pattern string
	Err     error
}

// PatternFilter matches node names against precompiled skip patterns. A name
// matches only if a whole pattern matches the whole name.
type PatternFilter struct {
	sources  []string
	compiled []*regexp.Regexp
	invalid  []InvalidPattern
}

// CompilePatterns compiles exprs once. Empty entries are ignored and invalid
// ones are kept aside in Invalid; they never match.
func CompilePatterns(exprs []string) *PatternFilter {
	f := &PatternFilter{}
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			f.invalid = append(f.invalid, InvalidPattern{Pattern: expr, Err: err})
			continue
		}
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			f.invalid = append(f.invalid, InvalidPattern{Pattern: expr, Err: err})
			continue
		}
		f.sources = append(f.sources, expr)
		f.compiled = append(f.compiled, re)
	}
	return f
}

// Matches reports whether name is fully matched by any valid pattern. The
// controller is tested under both its empty name and its display name.
func (f *PatternFilter) Matches(name string) bool {
	if f == nil {
		return false
	}
	for _, re := range f.compiled {
		if re.MatchString(name) {
			return true
		}
		if name == "" && re.MatchString(fleet.ControllerDisplayName) {
			return true
		}
	}
	return false
}

// Patterns returns the valid source expressions.
func (f *PatternFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.sources...)
}

// Invalid returns the expressions that were dropped.
func (f *PatternFilter) Invalid() []InvalidPattern {
	if f == nil {
		return nil
	}
	return append([]InvalidPattern(nil), f.invalid...)
}
