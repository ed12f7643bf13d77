package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create accounts with any role, list them, and change their role or status.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserSetRoleCmd())
	cmd.AddCommand(newUserSetActiveCmd("enable", true))
	cmd.AddCommand(newUserSetActiveCmd("disable", false))

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		in   service.RegisterInput
		role string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Example: `  neighborly user create --username root --role admin   # prompts for password
  neighborly user create --username bakery --role merchant --password s3cret --phone 555-0100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd.OutOrStdout(), in, role)
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Login name (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.RealName, "real-name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(authz.RoleUser), "Role to assign (admin, moderator, merchant, vip_user, user)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runUserCreate(out io.Writer, in service.RegisterInput, roleName string) error {
	role, err := authz.ParseRole(roleName)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, authz.Roles())
	}

	if in.Password == "" {
		pw, err := promptPassword()
		if err != nil {
			return err
		}
		in.Password = pw
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	authSvc := service.NewAuthService(store, service.AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     newLogger(cfg.Logging, io.Discard),
	})

	u, err := authSvc.CreateUser(context.Background(), in, role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(out, "Created user %q (id=%d, role=%s)\n", u.Username, u.ID, u.Role)
	return nil
}

// promptPassword reads a password twice from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var (
		role       string
		limit      int
		offset     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd.OutOrStdout(), role, limit, offset, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Only users holding this role")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of users")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of users to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(out io.Writer, roleName string, limit, offset int, jsonOutput bool) error {
	filter := model.UserFilter{Limit: limit, Offset: offset}
	if roleName != "" {
		role, err := authz.ParseRole(roleName)
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, authz.Roles())
		}
		filter.Role = role
	}

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	users, total, err := store.ListUsers(context.Background(), filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(out, model.ListResponse[model.User]{
			Resource: users,
			Meta:     &model.ResponseMeta{Count: len(users), Total: &total, Limit: limit, Offset: offset},
		})
	}

	if len(users) == 0 {
		fmt.Fprintln(out, "No users found. Use 'neighborly user create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-20s %-10s %-8s %-8s\n", "ID", "USERNAME", "ROLE", "ACTIVE", "POINTS")
	fmt.Fprintf(out, "%-6s %-20s %-10s %-8s %-8s\n", "--", "--------", "----", "------", "------")
	for _, u := range users {
		active := "yes"
		if !u.IsActive {
			active = "no"
		}
		fmt.Fprintf(out, "%-6d %-20s %-10s %-8s %-8d\n", u.ID, u.Username, u.Role, active, u.CreditPoints)
	}
	fmt.Fprintf(out, "\n%d of %d users\n", len(users), total)
	return nil
}

// ---------- user set-role ----------

func newUserSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set-role <user-id> <role>",
		Short:   "Change the role of a user",
		Example: `  neighborly user set-role 7 moderator`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			role, err := authz.ParseRole(args[1])
			if err != nil {
				return fmt.Errorf("%w (available: %v)", err, authz.Roles())
			}

			store, err := openConfigStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			if err := store.SetUserRole(context.Background(), id, role); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d is now %s\n", id, role)
			return nil
		},
	}
}

// ---------- user enable / disable ----------

func newUserSetActiveCmd(verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <user-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			store, err := openConfigStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			if err := store.SetUserActive(context.Background(), id, active); err != nil {
				return fmt.Errorf("%s user: %w", verb, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d %sd\n", id, verb)
			return nil
		},
	}
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
