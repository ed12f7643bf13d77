package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/neighborly/neighborly/internal/model"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect recorded access denials",
	}

	cmd.AddCommand(newAuditListCmd())

	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		reason     string
		userID     int64
		since      time.Duration
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List denials, newest first",
		Example: `  neighborly audit list --reason role_mismatch --since 24h
  neighborly audit list --user 7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.DenialFilter{Reason: reason, Limit: limit}
			if userID > 0 {
				f.UserID = &userID
			}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			return runAuditList(cmd.OutOrStdout(), f, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Only this reason (unauthenticated, insufficient_permission, role_mismatch)")
	cmd.Flags().Int64Var(&userID, "user", 0, "Only denials for this user id")
	cmd.Flags().DurationVar(&since, "since", 0, "Only denials newer than this (e.g. 1h, 168h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of denials")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAuditList(out io.Writer, f model.DenialFilter, jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	denials, err := store.ListDenials(context.Background(), f)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, denials)
	}

	if len(denials) == 0 {
		fmt.Fprintln(out, "No denials recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-6s %-10s %-24s %-7s %s\n", "TIME", "USER", "ROLE", "REASON", "METHOD", "PATH")
	for _, d := range denials {
		user := "-"
		if d.UserID != nil {
			user = fmt.Sprintf("%d", *d.UserID)
		}
		role := string(d.Role)
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(out, "%-20s %-6s %-10s %-24s %-7s %s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"), user, role, d.Reason, d.Method, d.Path)
	}
	return nil
}
