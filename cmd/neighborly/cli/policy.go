package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/drift"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Validate, compare, and export role-permission policies",
		Long: `A policy file replaces the built-in role-permission table:

  roles:
    admin: [manage_users, view_users, ...]
    user: []

Every role must be listed. Unknown roles or permissions are rejected.`,
	}

	cmd.AddCommand(newPolicyValidateCmd())
	cmd.AddCommand(newPolicyDiffCmd())
	cmd.AddCommand(newPolicyDumpCmd())
	cmd.AddCommand(newPolicyReloadCmd())

	return cmd
}

// ---------- policy validate ----------

func newPolicyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "validate <file>",
		Short:   "Check that a policy file is well-formed",
		Example: `  neighborly policy validate ./policy.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func runPolicyValidate(out io.Writer, path string) error {
	t, err := config.LoadPolicy(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: valid\n", path)
	for _, r := range authz.Roles() {
		fmt.Fprintf(out, "  %-12s %2d permissions\n", r, len(t.Grants(r)))
	}

	report := drift.Diff(authz.DefaultTable(), t, authz.DefaultRoutes())
	if report.HasDrift {
		fmt.Fprintf(out, "\n%d escalation(s), %d restriction(s) relative to the built-in policy.\n",
			report.EscalationCount, report.RestrictionCount)
		fmt.Fprintln(out, "Run 'neighborly policy diff' for details.")
	}
	return nil
}

// ---------- policy diff ----------

func newPolicyDiffCmd() *cobra.Command {
	var (
		against    string
		jsonOutput bool
		failOn     bool
	)

	cmd := &cobra.Command{
		Use:   "diff <file>",
		Short: "Show what a policy file would change",
		Long: `Compare a candidate policy against the active one (or --against another file).
Each change is an escalation (a role gains a permission or view) or a restriction.`,
		Example: `  neighborly policy diff ./policy.yaml
  neighborly policy diff ./next.yaml --against ./current.yaml --fail-on-escalation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyDiff(cmd.OutOrStdout(), args[0], against, jsonOutput, failOn)
		},
	}

	cmd.Flags().StringVar(&against, "against", "", "Policy file to compare with (default: the active policy)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&failOn, "fail-on-escalation", false, "Exit non-zero when any role gains access")

	return cmd
}

func runPolicyDiff(out io.Writer, path, against string, jsonOutput, failOnEscalation bool) error {
	next, err := config.LoadPolicy(path)
	if err != nil {
		return err
	}

	var current *authz.Table
	if against != "" {
		current, err = config.LoadPolicy(against)
	} else {
		current, _, err = activeTable()
	}
	if err != nil {
		return err
	}

	report := drift.Diff(current, next, authz.DefaultRoutes())

	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printDrift(out, report)
	}

	if failOnEscalation && report.HasEscalation {
		return fmt.Errorf("policy grants %d new access right(s)", report.EscalationCount)
	}
	return nil
}

func printDrift(out io.Writer, report drift.Report) {
	if !report.HasDrift {
		fmt.Fprintln(out, "No changes.")
		return
	}
	for _, rr := range report.Roles {
		if !rr.HasDrift {
			continue
		}
		fmt.Fprintf(out, "%s\n", rr.Role)
		for _, item := range rr.Items {
			mark := "-"
			if item.Type == drift.ChangeEscalation {
				mark = "+"
			}
			fmt.Fprintf(out, "  %s %s\n", mark, item.Description)
		}
	}
	fmt.Fprintf(out, "\n%d role(s) changed: %d escalation(s), %d restriction(s)\n",
		report.ChangedRoles, report.EscalationCount, report.RestrictionCount)
}

// ---------- policy dump ----------

func newPolicyDumpCmd() *cobra.Command {
	var builtin bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the active policy in policy file form",
		Example: `  neighborly policy dump --builtin > policy.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := authz.DefaultTable()
			if !builtin {
				var err error
				if t, _, err = activeTable(); err != nil {
					return err
				}
			}
			data, err := config.MarshalPolicy(t)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&builtin, "builtin", false, "Print the built-in policy instead of the configured one")

	return cmd
}

// ---------- policy reload ----------

func newPolicyReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Make the background server re-read its policy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := readPID()
			if err != nil {
				return fmt.Errorf("no running server found (missing PID file at %s)", pidFilePath())
			}
			if !isProcessRunning(pid) {
				return fmt.Errorf("server (PID %d) is not running", pid)
			}
			if err := reloadProcess(pid); err != nil {
				return fmt.Errorf("signal server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent reload to server (PID %d). Check %s for the result.\n", pid, logFilePath())
			return nil
		},
	}
}
