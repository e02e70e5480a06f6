// Package doctor checks a wsclean configuration for errors and likely mistakes.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mattjoyce/wsclean/internal/auth"
	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/config"
	"github.com/mattjoyce/wsclean/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateNodeSelection(r)
	d.validateSkipPatterns(r)
	d.validateTimeout(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.warnMissingMounts(r)
	d.checkFleetFile(r)
	d.warnDeprecatedSyntax(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	} else if err := storage.CheckLocalFilesystem(d.cfg.State.Path); err != nil {
		d.addError(r, "service", "state.path", err.Error())
	}
	if d.cfg.Service.RunLogRetention < 0 {
		d.addError(r, "service", "service.run_log_retention", "run_log_retention must not be negative")
	}
}

// validateNodeSelection checks the selection mode and the options it ignores.
func (d *Doctor) validateNodeSelection(r *Result) {
	sel, err := cleanup.ParseNodeSelection(d.cfg.Cleanup.NodeSelection)
	if err != nil {
		d.addError(r, "cleanup", "cleanup.node_selection", err.Error())
		return
	}
	if sel == cleanup.SelectHistoryOnly {
		d.addWarning(r, "cleanup", "cleanup.skip_roaming",
			"skip_roaming is ignored when node_selection is history_only")
	}
}

// validateSkipPatterns reports invalid expressions as errors and stray
// whitespace as warnings. Patterns are numbered from 1.
func (d *Doctor) validateSkipPatterns(r *Result) {
	for i, pattern := range d.cfg.Cleanup.SkipNodePatterns {
		field := fmt.Sprintf("cleanup.skip_node_patterns[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		if strings.HasPrefix(pattern, " ") {
			d.addWarning(r, "cleanup", field, fmt.Sprintf("pattern %d starts with whitespace", i+1))
		}
		if strings.HasSuffix(pattern, " ") {
			d.addWarning(r, "cleanup", field, fmt.Sprintf("pattern %d ends with whitespace", i+1))
		}
		if _, err := regexp.Compile(pattern); err != nil {
			d.addError(r, "cleanup", field, fmt.Sprintf("pattern %d is not a valid regular expression: %v", i+1, err))
		}
	}
}

func (d *Doctor) validateTimeout(r *Result) {
	t := d.cfg.Cleanup.Timeout
	if t == nil {
		return
	}
	if *t < 0 {
		d.addError(r, "cleanup", "cleanup.timeout", "timeout must not be negative")
		return
	}
	if *t == 0 {
		d.addWarning(r, "cleanup", "cleanup.timeout", "timeout is 0; deletion phases are unbounded")
	}
}

// validateAPIConfig checks API server settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
	if d.cfg.API.MaxConcurrentRuns < 0 {
		d.addError(r, "api", "api.max_concurrent_runs", "max_concurrent_runs must not be negative")
	}
}

func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		for j, scope := range token.Scopes {
			if !auth.KnownScope(scope) {
				d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
					fmt.Sprintf("unknown scope %q (expected one of %s)", scope, strings.Join(auth.Scopes(), ", ")))
			}
		}
	}
}

// warnMissingMounts flags mount roots that do not exist on this host.
func (d *Doctor) warnMissingMounts(r *Result) {
	for node, root := range d.cfg.Mounts {
		if _, err := os.Stat(root); err != nil {
			d.addWarning(r, "mounts", "mounts."+node,
				fmt.Sprintf("mount root %s is not accessible: %v", root, err))
		}
	}
}

// checkFleetFile warns when the configured fleet file is missing or not
// pinned by an existing manifest, and fails when it no longer matches.
func (d *Doctor) checkFleetFile(r *Result) {
	path := d.cfg.Fleet.File
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		d.addWarning(r, "fleet", "fleet.file", fmt.Sprintf("fleet file %s is not accessible: %v", path, err))
		return
	}
	if d.cfg.SourcePath == "" {
		return
	}
	switch err := config.VerifyLocked(d.cfg.SourcePath, path); {
	case err == nil:
	case errors.Is(err, config.ErrNotLocked):
		d.addWarning(r, "fleet", "fleet.file", "fleet file is not pinned; run wsclean config lock")
	default:
		d.addError(r, "fleet", "fleet.file", err.Error())
	}
}

// warnDeprecatedSyntax warns about legacy config patterns.
func (d *Doctor) warnDeprecatedSyntax(r *Result) {
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) > 0 {
		d.addWarning(r, "deprecated", "api.auth",
			"both api_key and tokens configured; prefer tokens array only")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
