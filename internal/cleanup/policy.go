package cleanup

import (
	"fmt"
	"time"

	"github.com/mattjoyce/wsclean/internal/fleet"
)

// DefaultTimeout bounds the deletion phase when nothing else is configured.
const DefaultTimeout = 15 * time.Minute

// NodeSelection names which sources of truth discover candidate nodes.
type NodeSelection string

const (
	SelectLabelOnly       NodeSelection = "label_only"
	SelectHistoryOnly     NodeSelection = "history_only"
	SelectLabelAndHistory NodeSelection = "label_and_history"
)

// ParseNodeSelection validates s. The empty string selects label_only.
func ParseNodeSelection(s string) (NodeSelection, error) {
	switch NodeSelection(s) {
	case "":
		return SelectLabelOnly, nil
	case SelectLabelOnly, SelectHistoryOnly, SelectLabelAndHistory:
		return NodeSelection(s), nil
	default:
		return "", fmt.Errorf("unknown node selection %q (want label_only, history_only or label_and_history)", s)
	}
}

// Policy expands the selection into its two switches.
func (s NodeSelection) Policy() SelectionPolicy {
	switch s {
	case SelectHistoryOnly:
		return SelectionPolicy{UseHistory: true}
	case SelectLabelAndHistory:
		return SelectionPolicy{UseLabels: true, UseHistory: true}
	default:
		return SelectionPolicy{UseLabels: true}
	}
}

// SelectionPolicy says which discovery sources contribute candidates.
type SelectionPolicy struct {
	UseLabels  bool
	UseHistory bool
}

// ExecutionMode chooses between one-at-a-time and per-node parallel deletion.
type ExecutionMode int

const (
	Sequential ExecutionMode = iota
	Parallel
)

func (m ExecutionMode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// Outcome is the terminal state of a run.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeTimedOut
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ExclusionRules removes whole nodes from a candidate set.
type ExclusionRules struct {
	Patterns      *PatternFilter
	DisabledNodes map[string]struct{}
}

// Settings is the cleanup configuration in engine terms.
type Settings struct {
	Selection     NodeSelection
	SkipRoaming   bool
	Parallel      bool
	Patterns      *PatternFilter
	DisabledNodes []string
	// Timeout bounds the deletion phase; zero means no bound.
	Timeout time.Duration
}

// DefaultSettings mirrors the defaults of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		Selection:   SelectLabelOnly,
		SkipRoaming: true,
		Parallel:    true,
		Patterns:    CompilePatterns(nil),
		Timeout:     DefaultTimeout,
	}
}

// Mode returns the configured execution mode.
func (s Settings) Mode() ExecutionMode {
	if s.Parallel {
		return Parallel
	}
	return Sequential
}

// Rules returns the exclusion rules the settings describe. "controller" in
// DisabledNodes also names the unnamed controller node.
func (s Settings) Rules() ExclusionRules {
	disabled := make(map[string]struct{}, len(s.DisabledNodes))
	for _, name := range s.DisabledNodes {
		disabled[name] = struct{}{}
		if name == fleet.ControllerDisplayName {
			disabled[""] = struct{}{}
		}
	}
	return ExclusionRules{Patterns: s.Patterns, DisabledNodes: disabled}
}
