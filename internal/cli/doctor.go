// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for lgchat.
//
// Command: doctor
// Short:   Run health checks and diagnostics
// Aliases: diag
//
// Examples:
//   lgchat doctor                Run all health checks
//   lgchat doctor --json         Health check results in JSON
//
// Health Checks Performed:
//   1. Config Valid      - Configuration file loads and validates
//   2. Token Store       - Credential store opens and is owner-only
//   3. Backend Reachable - The backend answers its health endpoint
//   4. Signed In         - The stored token is accepted by the backend
//
// Exit Codes:
//   0   All checks passed (warnings allowed)
//   1   One or more checks failed
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/config"
	"github.com/jeranaias/lgchat/internal/tokenstore"
)

// doctorTimeout bounds each network check.
const doctorTimeout = 10 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the rendered marker for the check status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// MarshalJSON encodes the status by name.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"` // Suggested command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + DimStyle.Render("     -> "+c.Fix)
	}
	return result
}

// doctorReport is the --json output.
type doctorReport struct {
	Checks  []*HealthCheck `json:"checks"`
	Passed  int            `json:"passed"`
	Warned  int            `json:"warned"`
	Failed  int            `json:"failed"`
	Healthy bool           `json:"healthy"`
}

func newDoctorReport(checks []*HealthCheck) doctorReport {
	r := doctorReport{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			r.Passed++
		case CheckWarn:
			r.Warned++
		case CheckFail:
			r.Failed++
		}
	}
	r.Healthy = r.Failed == 0
	return r
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

func newDoctorCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "doctor",
		Aliases:     []string{"diag"},
		Short:       "Run health checks and diagnostics",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{setupAnnotation: setupNone},
		RunE: func(cmd *cobra.Command, args []string) error {
			report := newDoctorReport(a.runChecks(cmd.Context()))
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				a.printDoctor(report)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d health check(s) failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func (a *app) printDoctor(r doctorReport) {
	fmt.Fprintln(a.out, TitleStyle.Render("lgchat Doctor"))
	fmt.Fprintln(a.out, DimStyle.Render(strings.Repeat("=", 41)))
	for _, c := range r.Checks {
		fmt.Fprintln(a.out, c.Render())
	}
	fmt.Fprintln(a.out, DimStyle.Render(strings.Repeat("-", 41)))

	parts := []string{fmt.Sprintf("%d passed", r.Passed)}
	if r.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", r.Warned)))
	}
	if r.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	}
	fmt.Fprintln(a.out, strings.Join(parts, ", "))
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runChecks runs every check. Later checks use defaults when the config
// cannot be loaded so they still report something useful.
func (a *app) runChecks(ctx context.Context) []*HealthCheck {
	cfg, configCheck := a.checkConfig()
	checks := []*HealthCheck{configCheck}

	storeCheck, token := a.checkTokenStore(cfg)
	checks = append(checks, storeCheck)

	client := newClient(cfg, zerolog.Nop())
	checks = append(checks, checkBackend(ctx, client))
	checks = append(checks, checkSignedIn(ctx, client, token))
	return checks
}

func (a *app) checkConfig() (*config.Config, *HealthCheck) {
	check := &HealthCheck{Name: "config"}
	cfg, err := a.loadConfig()
	if err != nil {
		check.Status = CheckFail
		check.Message = "Config invalid: " + errorMessage(err)
		check.Fix = "lgchat config init --force"
		return config.Default(), check
	}
	check.Status = CheckPass
	check.Message = "Config valid (" + cfg.API.BaseURL + ")"
	return cfg, check
}

// checkTokenStore opens the configured store and returns the stored user
// token, if any.
func (a *app) checkTokenStore(cfg *config.Config) (*HealthCheck, string) {
	check := &HealthCheck{Name: "token_store"}
	path, err := cfg.TokenPath()
	if err != nil {
		check.Status = CheckFail
		check.Message = "Token store path unavailable: " + err.Error()
		return check, ""
	}
	if cfg.Storage.Backend == tokenstore.BackendMemory {
		check.Status = CheckWarn
		check.Message = "Token store is in memory; sign-in is not kept between runs"
		check.Fix = "lgchat config set storage.backend file"
		return check, ""
	}

	info, statErr := os.Stat(path)
	if errors.Is(statErr, os.ErrNotExist) {
		check.Status = CheckPass
		check.Message = "Token store not created yet (" + path + ")"
		return check, ""
	}

	store, err := tokenstore.Open(cfg.Storage.Backend, path)
	if err != nil {
		check.Status = CheckFail
		check.Message = "Token store unreadable: " + err.Error()
		check.Fix = "remove " + path + " and sign in again"
		return check, ""
	}
	defer store.Close()

	token, err := store.Get(tokenstore.KeyAccessToken)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		check.Status = CheckFail
		check.Message = "Token store unreadable: " + err.Error()
		check.Fix = "remove " + path + " and sign in again"
		return check, ""
	}

	// SECURITY: credentials must be owner-only.
	if statErr == nil && info.Mode().Perm()&0077 != 0 {
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("Token store %s has mode %o", path, info.Mode().Perm())
		check.Fix = "chmod 600 " + path
		return check, token
	}
	check.Status = CheckPass
	check.Message = "Token store OK (" + cfg.Storage.Backend + ")"
	return check, token
}

func checkBackend(ctx context.Context, client *api.Client) *HealthCheck {
	check := &HealthCheck{Name: "backend"}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	status, err := client.Health(ctx)
	if err != nil {
		check.Status = CheckFail
		check.Message = "Backend unreachable at " + client.BaseURL() + ": " + api.Detail(err)
		check.Fix = "check api.base_url or start the backend"
		return check
	}

	msg := fmt.Sprintf("Backend %s (%s", status.Status, status.Latency.Round(time.Millisecond))
	if status.Version != "" {
		msg += ", v" + status.Version
	}
	msg += ")"

	var degraded []string
	for name, state := range status.Components {
		if state != "healthy" && state != "ok" {
			degraded = append(degraded, name+"="+state)
		}
	}
	sort.Strings(degraded)

	switch {
	case !status.Healthy():
		check.Status = CheckFail
	case len(degraded) > 0:
		check.Status = CheckWarn
		msg += ": " + strings.Join(degraded, ", ")
	default:
		check.Status = CheckPass
	}
	check.Message = msg
	return check
}

func checkSignedIn(ctx context.Context, client *api.Client, token string) *HealthCheck {
	check := &HealthCheck{Name: "signed_in"}
	if token == "" {
		check.Status = CheckWarn
		check.Message = "Not signed in"
		check.Fix = "lgchat login"
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	sessions, err := client.ListSessions(ctx, token)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		check.Status = CheckFail
		check.Message = "Stored sign-in has expired"
		check.Fix = "lgchat login"
	case err != nil:
		check.Status = CheckWarn
		check.Message = "Could not verify sign-in: " + api.Detail(err)
	default:
		check.Status = CheckPass
		check.Message = fmt.Sprintf("Signed in (%d sessions)", len(sessions))
	}
	return check
}
