package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wsclean/internal/api"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = stdoutW
	os.Stderr = stderrW

	outCh := make(chan string)
	errCh := make(chan string)
	go func() { b, _ := io.ReadAll(stdoutR); outCh <- string(b) }()
	go func() { b, _ := io.ReadAll(stderrR); errCh <- string(b) }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout, stderr := <-outCh, <-errCh
	_ = stdoutR.Close()
	_ = stderrR.Close()
	return code, stdout, stderr
}

func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

type fixture struct {
	dir    string
	config string
	mounts map[string]string
}

func (f fixture) workspaceFile(node, job string) string {
	return filepath.Join(f.mounts[node], "ci", "workspace", job, "out.txt")
}

// newFixture writes a config with one mount per node and imports a small
// fleet: two labelled agents plus the controller.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{dir: dir, config: filepath.Join(dir, "config.yaml"), mounts: map[string]string{}}

	var mounts strings.Builder
	for _, node := range []string{"controller", "agent-1", "agent-2"} {
		root := filepath.Join(dir, "mnt", node)
		f.mounts[node] = root
		fmt.Fprintf(&mounts, "  %s: %s\n", node, root)
		for _, job := range []string{"app", "prep"} {
			ws := filepath.Join(root, "ci", "workspace", job)
			require.NoError(t, os.MkdirAll(ws, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(ws, "out.txt"), []byte(node), 0o644))
		}
	}

	cfg := `service:
  log_level: error
  log_format: text
state:
  path: ./data/wsclean.db
cleanup:
  parallel: false
mounts:
` + mounts.String()
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0o644))

	fleetFile := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(fleetFile, []byte(`
nodes:
  - {name: controller, root: /ci}
  - {name: agent-1, root: /ci, labels: [linux]}
  - {name: agent-2, root: /ci, labels: [linux]}
jobs:
  - {name: app, label: linux}
  - {name: prep, label: linux, clean_phase: pre}
`), 0o644))

	code, stdout, stderr := cli(t, "fleet", "import", fleetFile, "--config", f.config)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Imported 3 node(s), 2 job(s), 0 build(s)")
	return f
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := cli(t, "explode")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: explode")
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := cli(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "run <pre|post>")
	assert.Contains(t, stdout, "hook <started|finished>")
}

func TestRunVersionJSON(t *testing.T) {
	oldVersion, oldCommit, oldDate := version, gitCommit, buildDate
	t.Cleanup(func() { version, gitCommit, buildDate = oldVersion, oldCommit, oldDate })
	version, gitCommit, buildDate = "1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z"

	code, stdout, _ := cli(t, "version", "--json")
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, versionInfo{Version: "1.2.3", Commit: "0123456789ab", BuildTime: "2026-01-02T03:04:05Z"}, info)
}

func TestFleetJobs(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "fleet", "jobs", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "app")
	assert.Contains(t, stdout, "linux")
	assert.Contains(t, stdout, "pre")
}

func TestPlanDoesNotDelete(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "plan", "--config", f.config, "--job", "app", "--node", "agent-1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Cleanup plan for app")
	assert.Contains(t, stdout, "agent-2")
	assert.Contains(t, stdout, "/ci/workspace/app")
	assert.Contains(t, stdout, "1 workspace(s) on 1 node(s)")

	code, stdout, stderr = cli(t, "plan", "--config", f.config, "--job", "app", "--node", "agent-1", "--json")
	require.Equal(t, 0, code, stderr)
	var plan api.PlanResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	assert.Equal(t, []api.NodeWorkspace{{Node: "agent-2", Paths: []string{"/ci/workspace/app"}}}, plan.Workspaces)

	assert.FileExists(t, f.workspaceFile("agent-2", "app"))
}

func TestRunPostCleansOtherNodes(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "run", "post", "--config", f.config, "--job", "app", "--node", "agent-1", "--json")
	require.Equal(t, 0, code, stderr)

	var res api.RunResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, "post", res.Phase)
	assert.Equal(t, "agent-1", res.Node)
	assert.Equal(t, 1, res.Deleted)

	assert.FileExists(t, f.workspaceFile("agent-1", "app"))
	assert.NoFileExists(t, f.workspaceFile("agent-2", "app"))
	assert.FileExists(t, f.workspaceFile("controller", "app"))

	code, stdout, stderr = cli(t, "runs", "list", "--config", f.config, "--json")
	require.Equal(t, 0, code, stderr)
	var runs api.RunsResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, res.RunID, runs.Runs[0].ID)

	code, stdout, _ = cli(t, "runs", "list", "--config", f.config)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "app")
	assert.Contains(t, stdout, "completed")
}

func TestRunRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	code, _, stderr := cli(t, "run", "during", "--config", f.config, "--job", "app")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown phase")

	code, _, stderr = cli(t, "run", "post", "--config", f.config)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--job is required")

	code, _, stderr = cli(t, "run", "post", "--config", f.config, "--job", "ghost")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown job")
}

func TestHook(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "hook", "finished", "--config", f.config, "--job", "prep", "--build", "1", "--node", "agent-1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "cleans in another phase")
	assert.FileExists(t, f.workspaceFile("agent-2", "prep"))

	code, stdout, stderr = cli(t, "hook", "started", "--config", f.config, "--job", "prep", "--build", "2", "--node", "agent-2", "--json")
	require.Equal(t, 0, code, stderr)
	var res api.RunResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "pre", res.Phase)
	assert.Equal(t, 1, res.Deleted)
	assert.NoFileExists(t, f.workspaceFile("agent-1", "prep"))
	assert.FileExists(t, f.workspaceFile("agent-2", "prep"))

	code, _, stderr = cli(t, "hook", "paused", "--config", f.config, "--job", "prep", "--build", "3")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown hook event")
}

func TestRunsPrune(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "runs", "prune", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Pruned 0 run(s)")
}

func TestConfigCheckLockAndShow(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := cli(t, "config", "check", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.NotEmpty(t, stdout)

	code, stdout, stderr = cli(t, "config", "lock", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, ".checksums")
	assert.FileExists(t, filepath.Join(f.dir, ".checksums"))

	code, stdout, stderr = cli(t, "config", "show", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "node_selection: label_only")

	data, err := os.ReadFile(f.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.config, append(data, []byte("# edited\n")...), 0o644))

	code, _, stderr = cli(t, "config", "show", "--config", f.config)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "config verification failed")
}

func TestFleetImportVerifiesLockedFile(t *testing.T) {
	f := newFixture(t)
	fleetFile := filepath.Join(f.dir, "fleet.yaml")

	code, stdout, stderr := cli(t, "config", "lock", "--config", f.config, fleetFile)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "(2 file(s))")

	code, _, stderr = cli(t, "fleet", "import", fleetFile, "--config", f.config)
	require.Equal(t, 0, code, stderr)

	other := filepath.Join(f.dir, "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("nodes: []\n"), 0o644))
	code, _, stderr = cli(t, "fleet", "import", other, "--config", f.config)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not listed in .checksums")

	data, err := os.ReadFile(fleetFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fleetFile, append(data, []byte("  - {name: rogue}\n")...), 0o644))
	code, stdout, stderr = cli(t, "fleet", "import", fleetFile, "--config", f.config)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Fleet file verification failed")
	assert.NotContains(t, stdout, "Imported")

	code, _, stderr = cli(t, "config", "lock", "--config", f.config, fleetFile)
	require.Equal(t, 0, code, stderr)
	code, stdout, stderr = cli(t, "fleet", "import", fleetFile, "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "3 job(s)")
}

func TestFleetImportUsesConfiguredFile(t *testing.T) {
	f := newFixture(t)
	data, err := os.ReadFile(f.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.config, append(data, []byte("fleet:\n  file: fleet.yaml\n")...), 0o644))

	code, stdout, stderr := cli(t, "config", "lock", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "(2 file(s))")

	code, stdout, stderr = cli(t, "fleet", "import", "--config", f.config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Imported 3 node(s)")
}

func TestConfigCheckStrictWarnings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`state:
  path: ./wsclean.db
cleanup:
  timeout: 0s
  skip_node_patterns: [" build-.*"]
`), 0o644))

	code, stdout, _ := cli(t, "config", "check", "--config", path, "--strict")
	assert.Equal(t, 2, code)
	assert.Contains(t, stdout, "pattern 1 starts with whitespace")

	code, stdout, _ = cli(t, "config", "check", "--config", path, "--json")
	assert.Equal(t, 0, code)
	assert.True(t, json.Valid([]byte(stdout)), stdout)
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, pos := splitFlagsAndPositionals([]string{"fleet.yaml", "--config", "c.yaml", "--x=1"}, map[string]bool{"config": true})
	assert.Equal(t, []string{"--config", "c.yaml", "--x=1"}, flags)
	assert.Equal(t, []string{"fleet.yaml"}, pos)
}
