package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/handler"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect RBAC roles",
		Long:  "List roles, show what a role is granted, and evaluate guards against the active policy.",
	}

	cmd.AddCommand(newRoleListCmd())
	cmd.AddCommand(newRoleShowCmd())
	cmd.AddCommand(newRoleCheckCmd())

	return cmd
}

// activeTable returns the table the server would load with the current
// configuration.
func activeTable() (*authz.Table, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	return loadPolicy(cfg)
}

// ---------- role list ----------

func newRoleListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleList(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleList(out io.Writer, jsonOutput bool) error {
	t, _, err := activeTable()
	if err != nil {
		return err
	}

	roles := authz.Roles()
	rows := make([]handler.RoleInfo, len(roles))
	for i, r := range roles {
		rows[i] = handler.DescribeRole(t, r)
	}

	if jsonOutput {
		return printJSON(out, rows)
	}

	fmt.Fprintf(out, "%-12s %-16s %-8s %-6s\n", "ROLE", "LABEL", "COLOR", "PERMS")
	fmt.Fprintf(out, "%-12s %-16s %-8s %-6s\n", "----", "-----", "-----", "-----")
	for _, r := range rows {
		fmt.Fprintf(out, "%-12s %-16s %-8s %-6d\n", r.Role, r.Label, r.Color, len(r.Permissions))
	}
	return nil
}

// ---------- role show ----------

func newRoleShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "show <role>",
		Short:   "Show the permissions and navigation of one role",
		Example: `  neighborly role show merchant`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleShow(cmd.OutOrStdout(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleShow(out io.Writer, name string, jsonOutput bool) error {
	role, err := authz.ParseRole(name)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, authz.Roles())
	}
	t, source, err := activeTable()
	if err != nil {
		return err
	}

	info := handler.DescribeRole(t, role)
	nav := t.NavItems(&authz.User{Role: role})

	if jsonOutput {
		return printJSON(out, map[string]interface{}{
			"role":   info,
			"nav":    nav,
			"policy": source,
		})
	}

	fmt.Fprintf(out, "%s (%s, %s)\n", info.Role, info.Label, info.Color)
	fmt.Fprintf(out, "  policy: %s\n\n", source)

	fmt.Fprintln(out, "Permissions:")
	if len(info.Permissions) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, p := range info.Permissions {
		fmt.Fprintf(out, "  %-24s %s\n", p, p.Category())
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Navigation:")
	for _, item := range nav {
		fmt.Fprintf(out, "  %-16s %s\n", item.Path, item.Label)
	}
	return nil
}

// ---------- role check ----------

func newRoleCheckCmd() *cobra.Command {
	var (
		permission   string
		requiredRole string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "check <role>",
		Short: "Evaluate a guard for a user holding <role>",
		Long: `Evaluate a guard for a user holding <role>. The permission is checked first,
then the exact role. Exits non-zero when access is denied.`,
		Example: `  neighborly role check merchant --permission manage_store
  neighborly role check moderator --required-role admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleCheck(cmd.OutOrStdout(), args[0], permission, requiredRole, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&permission, "permission", "", "Permission the guard requires")
	cmd.Flags().StringVar(&requiredRole, "required-role", "", "Exact role the guard requires")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleCheck(out io.Writer, name, permission, requiredRole string, jsonOutput bool) error {
	role, err := authz.ParseRole(name)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, authz.Roles())
	}
	need, err := parseRequirement(permission, requiredRole)
	if err != nil {
		return err
	}
	t, _, err := activeTable()
	if err != nil {
		return err
	}

	d := t.Evaluate(&authz.User{Role: role}, need)
	if jsonOutput {
		if err := printJSON(out, d); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s -> %s\n", role, describeDecision(d))
	}
	if !d.Allowed {
		return d.Err()
	}
	return nil
}

// parseRequirement builds a Requirement from optional flag values.
func parseRequirement(permission, requiredRole string) (authz.Requirement, error) {
	var need authz.Requirement
	if permission != "" {
		p, err := authz.ParsePermission(permission)
		if err != nil {
			return need, err
		}
		need.Permission = p
	}
	if requiredRole != "" {
		r, err := authz.ParseRole(requiredRole)
		if err != nil {
			return need, err
		}
		need.Role = r
	}
	return need, nil
}

func describeDecision(d authz.Decision) string {
	var parts []string
	if d.Required.Permission != "" {
		parts = append(parts, "permission "+string(d.Required.Permission))
	}
	if d.Required.Role != "" {
		parts = append(parts, "role "+string(d.Required.Role))
	}
	need := "authentication"
	if len(parts) > 0 {
		need = strings.Join(parts, " + ")
	}
	if d.Allowed {
		return "allowed (" + need + ")"
	}
	return "denied: " + d.Reason.String() + " (" + need + ")"
}
