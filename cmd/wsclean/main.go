package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsclean/internal/api"
	"github.com/mattjoyce/wsclean/internal/auth"
	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/config"
	"github.com/mattjoyce/wsclean/internal/doctor"
	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/inventory"
	"github.com/mattjoyce/wsclean/internal/lock"
	"github.com/mattjoyce/wsclean/internal/log"
	"github.com/mattjoyce/wsclean/internal/metrics"
	"github.com/mattjoyce/wsclean/internal/runlog"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes for run and hook.
const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 2
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		return runCleanup(args)
	case "plan":
		return runPlan(args)
	case "hook":
		return runHook(args)
	case "serve":
		return runServe(args)
	case "runs":
		return runRunsNoun(args)
	case "fleet":
		return runFleetNoun(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`wsclean - reclaim build workspaces across a CI fleet

Usage:
  wsclean <command> [flags]

Cleanup Commands:
  run <pre|post>            Run one cleanup phase for a job
  plan                      Show the workspaces a run would clear
  hook <started|finished>   Record a build event and run the job's clean phase
  serve                     Serve the hook API

Resources (Nouns):
  runs      list, prune      Cleanup run log
  fleet     import, jobs     Node and job inventory
  config    check, lock, show

General:
  version   Show version information
  help      Show this help message

Use 'wsclean <command> --help' for flags.
`)
}

// --- CLEANUP COMMANDS ---

func runCleanup(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: wsclean run <pre|post> --job NAME [--node NAME] [--config PATH] [--json]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}
	phase, err := fleet.ParsePhase(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jobName := fs.String("job", "", "Job whose workspaces are cleaned")
	node := fs.String("node", "", "Node the triggering build runs on (default: controller)")
	jsonOut := fs.Bool("json", false, "Output the result as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if *jobName == "" {
		fmt.Fprintln(os.Stderr, "Error: --job is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	job, err := a.inventory.Job(ctx, *jobName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	jobLock, err := lock.AcquireJob(a.lockDir(), job.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer jobLock.Release()

	res, err := a.cleaner.Run(ctx, phase, cleanup.BuildContext{Job: job, NodeName: fleet.NameFromDisplay(*node)})
	printResult(res, *jsonOut)
	return exitCodeFor(res, err)
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jobName := fs.String("job", "", "Job to plan for")
	node := fs.String("node", "", "Node the triggering build runs on (default: controller)")
	jsonOut := fs.Bool("json", false, "Output the plan as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *jobName == "" {
		fmt.Fprintln(os.Stderr, "Error: --job is required")
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	job, err := a.inventory.Job(ctx, *jobName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	current := fleet.NameFromDisplay(*node)
	plan, err := a.cleaner.Plan(ctx, cleanup.BuildContext{Job: job, NodeName: current})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		out := api.PlanResponse{Job: job.Name, Node: fleet.DisplayName(current), Workspaces: []api.NodeWorkspace{}}
		for _, n := range plan.Nodes() {
			out.Workspaces = append(out.Workspaces, api.NodeWorkspace{Node: fleet.DisplayName(n), Paths: plan.Paths(n)})
		}
		printJSON(out)
		return 0
	}
	renderPlan(os.Stdout, job.Name, current, plan)
	return 0
}

func runHook(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: wsclean hook <started|finished> --job NAME --build N [--node NAME] [--workspace PATH] [--config PATH]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}
	event := cleanup.HookEvent(args[0])
	if _, err := event.Phase(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("hook", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jobName := fs.String("job", "", "Job the build belongs to")
	build := fs.Int("build", 0, "Build number")
	node := fs.String("node", "", "Node the build runs on (default: controller)")
	ws := fs.String("workspace", "", "Workspace path of the build (default: derived from the node)")
	jsonOut := fs.Bool("json", false, "Output the result as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if *jobName == "" || *build <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --job and a positive --build are required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	job, err := a.inventory.Job(ctx, *jobName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := a.inventory.RecordBuild(ctx, inventory.BuildUpdate{
		Job:           job.Name,
		Number:        *build,
		NodeName:      *node,
		WorkspacePath: *ws,
		Running:       event == cleanup.EventStarted,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	phase, _ := event.Phase()
	if !cleanup.CleansIn(job, phase) {
		fmt.Printf("%s cleans in another phase; nothing to do\n", job.Name)
		return 0
	}

	jobLock, err := lock.AcquireJob(a.lockDir(), job.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer jobLock.Release()

	res, _, err := a.cleaner.Hook(ctx, event, cleanup.BuildContext{Job: job, NodeName: fleet.NameFromDisplay(*node)})
	printResult(res, *jsonOut)
	return exitCodeFor(res, err)
}

func printResult(res cleanup.Result, jsonOut bool) {
	if jsonOut {
		printJSON(api.NewRunResponse(res))
		return
	}
	renderResult(os.Stdout, res)
}

func exitCodeFor(res cleanup.Result, err error) int {
	switch {
	case err != nil:
		return exitError
	case res.Status != cleanup.StatusCompleted:
		return exitFailed
	default:
		return exitOK
	}
}

// --- SERVE ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	listen := fs.String("listen", "", "Override api.listen")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("wsclean starting", "version", version, "config", cfg.SourcePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openAppWithConfig(ctx, cfg, log.Get())
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer a.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	if n, err := a.runs.Prune(ctx, cfg.Service.RunLogRetention); err != nil {
		logger.Warn("failed to prune run log", "error", err)
	} else if n > 0 {
		logger.Info("pruned run log", "removed", n)
	}

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	keys, err := auth.NewKeyring(cfg.API.Auth.APIKey, tokens)
	if err != nil {
		logger.Error("invalid api.auth", "error", err)
		return 1
	}
	server := api.New(api.Config{
		Listen:            cfg.API.Listen,
		Keys:              keys,
		MaxConcurrentRuns: cfg.API.MaxConcurrentRuns,
		Metrics:           metrics.Handler(a.registry),
	}, a.cleaner, a.inventory, a.runs, lock.InDir(a.lockDir()), log.WithComponent("api"))

	logger.Info("wsclean running (press Ctrl+C to stop)")
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api failed", "error", err)
		return 1
	}
	logger.Info("wsclean stopped")
	return 0
}

// --- RUNS ---

func runRunsNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: wsclean runs <list|prune> [flags]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}
	switch args[0] {
	case "list":
		return runRunsList(args[1:])
	case "prune":
		return runRunsPrune(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown runs action: %s\n", args[0])
		return 1
	}
}

func runRunsList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jobName := fs.String("job", "", "Only runs of this job")
	limit := fs.Int("limit", runlog.DefaultLimit, "Maximum number of runs")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	runs, err := a.runs.List(ctx, runlog.Filter{Job: *jobName, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		if runs == nil {
			runs = []runlog.Entry{}
		}
		printJSON(api.RunsResponse{Runs: runs})
		return 0
	}
	renderRuns(os.Stdout, runs)
	return 0
}

func runRunsPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	olderThan := fs.Duration("older-than", 0, "Override service.run_log_retention")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	retention := a.cfg.Service.RunLogRetention
	if *olderThan > 0 {
		retention = *olderThan
	}
	n, err := a.runs.Prune(ctx, retention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %d run(s) older than %s\n", n, retention)
	return 0
}

// --- FLEET ---

func runFleetNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: wsclean fleet <import|jobs> [flags]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}
	switch args[0] {
	case "import":
		return runFleetImport(args[1:])
	case "jobs":
		return runFleetJobs(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown fleet action: %s\n", args[0])
		return 1
	}
}

func runFleetImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"config": true})
	if err := fs.Parse(flags); err != nil {
		return 1
	}
	if len(positionals) > 1 {
		fmt.Fprintln(os.Stderr, "Usage: wsclean fleet import [fleet.yaml] [--config PATH]")
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	path := a.cfg.Fleet.File
	if len(positionals) == 1 {
		path = positionals[0]
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No fleet file given and fleet.file is not configured")
		return 1
	}
	if err := config.VerifyLocked(a.cfg.SourcePath, path); err != nil {
		fmt.Fprintf(os.Stderr, "Fleet file verification failed: %v\n"+
			"If you edited it intentionally, run: wsclean config lock --config %s %s\n", err, a.cfg.SourcePath, path)
		return 1
	}

	f, err := inventory.ReadFleetFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	sum, err := a.inventory.Import(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}
	fmt.Printf("Imported %d node(s), %d job(s), %d build(s)\n", sum.Nodes, sum.Jobs, sum.Builds)
	return 0
}

func runFleetJobs(args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	names, err := a.inventory.Jobs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, name := range names {
		job, err := a.inventory.Job(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		label, err := a.inventory.AssignedLabel(ctx, job)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		labelName := "(roaming)"
		if label != nil {
			labelName = label.Name
		}
		fmt.Printf("%-32s  %-20s  %s\n", job.Name, labelName, job.CleanPhase)
	}
	return 0
}

// --- CONFIG ---

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: wsclean config <check|lock|show> [flags]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runConfigCheck(args []string) int {
	var configPath, format string
	var strict, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if jsonOut {
		format = "json"
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Compute digests without writing .checksums")
	flags, extra := splitFlagsAndPositionals(args, map[string]bool{"config": true})
	if err := fs.Parse(flags); err != nil {
		return 1
	}

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}
	if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configPath = filepath.Join(configPath, "config.yaml")
	}

	// Refuse to lock a file that does not parse.
	cfg, err := config.Parse(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to lock: %v\n", err)
		return 1
	}
	files := cfg.LockedFiles()
	for _, f := range extra {
		abs, err := filepath.Abs(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		files = append(files, abs)
	}
	for _, f := range files[1:] {
		if _, err := inventory.ReadFleetFile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Refusing to lock: %v\n", err)
			return 1
		}
	}

	dir := filepath.Dir(cfg.SourcePath)
	report, err := config.Lock(dir, files, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config in %s: %v\n", dir, err)
		return 1
	}
	if verbose {
		for _, f := range report.Files {
			fmt.Printf("  HASH %s: %s\n", f.Name, f.Digest)
		}
	}
	if dryRun {
		fmt.Printf("DRY-RUN %s (not written)\n", report.ManifestPath)
	} else {
		fmt.Printf("Wrote %s (%d file(s))\n", report.ManifestPath, len(report.Files))
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(cfg)
		return 0
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: wsclean version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		printJSON(info)
		return 0
	}
	fmt.Printf("wsclean %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

// --- HELPERS ---

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

// splitFlagsAndPositionals lets positionals appear before flags.
func splitFlagsAndPositionals(args []string, takesValue map[string]bool) ([]string, []string) {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if takesValue[name] && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return flags, positionals
}
