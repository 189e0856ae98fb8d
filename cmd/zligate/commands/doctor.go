package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/zligate/internal/config"
	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/secretstore"
	"github.com/systmms/zligate/pkg/exec"
)

const doctorTimeout = 30 * time.Second

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, binaries and secrets",
		Long: `Verify that zligate can start.

This command checks:
- Configuration validity
- The zli binary and its version
- The ssh client
- Access to both service-account secrets

Secret values are never printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			d := &doctor{
				cfg:      cfg,
				newStore: secretstore.New,
				executor: exec.DefaultExecutor(),
			}
			results := d.run(ctx)

			out := cmd.OutOrStdout()
			displayCheckResults(out, results, verbose)

			healthy := 0
			for _, r := range results {
				if r.Status == statusHealthy {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some checks failed")
			}

			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

const (
	statusHealthy = "healthy"
	statusError   = "error"
	statusSkipped = "skipped"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name       string
	Status     string
	Message    string
	Suggestion string
}

type doctor struct {
	cfg      *config.Config
	newStore storeFactory
	executor exec.CommandExecutor
}

func (d *doctor) run(ctx context.Context) []CheckResult {
	var results []CheckResult

	if err := loadConfig(d.cfg); err != nil {
		results = append(results, failed("configuration", err))
		for _, name := range []string{"zli", "ssh", "secret store", "provider secret", "bzero secret"} {
			results = append(results, CheckResult{Name: name, Status: statusSkipped, Message: "configuration is invalid"})
		}
		return results
	}
	def := d.cfg.Definition
	results = append(results, CheckResult{Name: "configuration", Status: statusHealthy, Message: "secret store " + def.SecretStore.Type})

	results = append(results, d.checkZli(ctx, def.Zli.Path))
	results = append(results, d.checkSSH(def.SSH.Path))
	results = append(results, d.checkSecrets(ctx)...)

	return results
}

func (d *doctor) checkZli(ctx context.Context, path string) CheckResult {
	if err := exec.VerifyExecutable(path); err != nil {
		return failed("zli", err)
	}

	out, err := d.executor.Run(ctx, exec.NewCommand(path, "--version"))
	if err != nil {
		return failed("zli", err)
	}

	version := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	return CheckResult{Name: "zli", Status: statusHealthy, Message: fmt.Sprintf("%s (%s)", path, version)}
}

func (d *doctor) checkSSH(path string) CheckResult {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return failed("ssh", err)
	}
	return CheckResult{Name: "ssh", Status: statusHealthy, Message: resolved}
}

func (d *doctor) checkSecrets(ctx context.Context) []CheckResult {
	def := d.cfg.Definition

	store, err := d.newStore(ctx, def.SecretStore)
	if err != nil {
		return []CheckResult{
			failed("secret store", err),
			{Name: "provider secret", Status: statusSkipped, Message: "secret store unavailable"},
			{Name: "bzero secret", Status: statusSkipped, Message: "secret store unavailable"},
		}
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	results := []CheckResult{{Name: "secret store", Status: statusHealthy, Message: store.Type()}}
	for _, s := range []struct{ check, name string }{
		{"provider secret", def.Secrets.Provider},
		{"bzero secret", def.Secrets.BZero},
	} {
		buf, err := secretstore.Load(ctx, store, s.name)
		if err != nil {
			results = append(results, failed(s.check, err))
			continue
		}
		results = append(results, CheckResult{
			Name:    s.check,
			Status:  statusHealthy,
			Message: fmt.Sprintf("%s (%d bytes)", s.name, buf.Len()),
		})
		buf.Destroy()
	}
	return results
}

// failed keeps the first line of err for the table; the hint is shown
// with --verbose.
func failed(name string, err error) CheckResult {
	msg := strings.SplitN(err.Error(), "\n", 2)[0]
	return CheckResult{Name: name, Status: statusError, Message: msg, Suggestion: dserrors.SuggestionOf(err)}
}

// displayCheckResults shows check results in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, r := range results {
		status := r.Status
		switch r.Status {
		case statusHealthy:
			status = "✓ " + status
		case statusError:
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, r := range results {
		if r.Status == statusError && r.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s:\n  • %s\n", r.Name, r.Suggestion)
		}
	}
}
