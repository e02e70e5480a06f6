package fleet

import (
	"errors"
	"fmt"
)

// ControllerDisplayName is how the controller node ("") is shown to humans.
const ControllerDisplayName = "controller"

// Mode is a node's scheduling mode.
type Mode int

const (
	// ModeNormal nodes accept any job whose label matches (or any roaming job).
	ModeNormal Mode = iota
	// ModeExclusive nodes only run jobs that are explicitly tied to them.
	ModeExclusive
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts the stored representation back into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "normal":
		return ModeNormal, nil
	case "exclusive":
		return ModeExclusive, nil
	default:
		return ModeNormal, fmt.Errorf("unknown node mode %q", s)
	}
}

// Phase is the point in a job's lifecycle at which cleanup runs.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Title returns "Pre" or "Post" for banners.
func (p Phase) Title() string {
	switch p {
	case PhasePre:
		return "Pre"
	case PhasePost:
		return "Post"
	default:
		return string(p)
	}
}

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhasePre, PhasePost:
		return Phase(s), nil
	default:
		return "", fmt.Errorf("unknown phase %q (want pre or post)", s)
	}
}

// Node is a handle on a compute target. The zero value is the controller.
type Node struct {
	Name string
}

// IsController reports whether n is the controller node.
func (n Node) IsController() bool { return n.Name == "" }

func (n Node) String() string { return DisplayName(n.Name) }

// DisplayName normalises the controller's empty name for output.
func DisplayName(nodeName string) string {
	if nodeName == "" {
		return ControllerDisplayName
	}
	return nodeName
}

// NameFromDisplay maps a display name back to the stored node name, so
// "controller" becomes "".
func NameFromDisplay(display string) string {
	if display == ControllerDisplayName {
		return ""
	}
	return display
}

// Label is a named node-selection expression assigned to a job.
type Label struct {
	Name string
}

// Job identifies the job whose workspaces are being reclaimed.
type Job struct {
	Name string
	// Concurrent is true when the job allows overlapping builds.
	Concurrent bool
	// CleanPhase is the lifecycle phase this job wants cleanup to run in.
	CleanPhase Phase
}

// BuildRecord is one entry of a job's build history.
type BuildRecord struct {
	ID       string
	NodeName string
	// Started is false for builds that have not been given a node and
	// workspace yet.
	Started bool
	// WorkspacePath is empty when the workspace cannot be resolved, which
	// usually means the node is offline.
	WorkspacePath string
	// Running is true while the build is executing or still holds an executor.
	Running bool
}

var (
	// ErrIO marks a transient I/O failure while deleting on a node.
	ErrIO = errors.New("workspace i/o failure")
	// ErrChannelAborted marks a remote channel that dropped mid-request.
	ErrChannelAborted = errors.New("remote channel aborted")
	// ErrNoChannel is returned when a node has no deletion channel at all.
	ErrNoChannel = errors.New("no deletion channel for node")
)
