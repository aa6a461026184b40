package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"compliance-rag/internal/access"
	"compliance-rag/internal/app"
	"compliance-rag/internal/apperr"
	"compliance-rag/internal/storage"
)

func (r *runner) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and roles",
	}

	var (
		role string
		all  bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List active users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				var (
					users []storage.UserRecord
					err   error
				)
				if role != "" {
					users, err = a.Users.UsersByRole(ctx, access.Role(role))
				} else {
					users, err = a.Users.AllUsers(ctx, all)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, users)
			})
		},
	}
	list.Flags().StringVarP(&role, "role", "r", "", "only active users with this role")
	list.Flags().BoolVarP(&all, "all", "a", false, "include inactive users")

	get := &cobra.Command{
		Use:   "get [user-id]",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Users.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, u)
			})
		},
	}

	var (
		nu      access.NewUser
		newRole string
	)
	create := &cobra.Command{
		Use:   "create [user-id]",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nu.UserID = args[0]
			nu.Role = access.Role(newRole)
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				created, err := a.Users.CreateUser(ctx, nu)
				if err != nil {
					return err
				}
				if !created {
					cmd.Printf("User %s already exists\n", nu.UserID)
					return nil
				}
				cmd.Printf("Created %s as %s\n", nu.UserID, nu.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&nu.Name, "name", "", "display name")
	create.Flags().StringVar(&nu.Email, "email", "", "email address")
	create.Flags().StringVar(&nu.Department, "department", "", "department")
	create.Flags().StringVar(&newRole, "role", string(access.RoleEmployee), "employee, trainer or admin")

	changeRole := &cobra.Command{
		Use:   "role [user-id] [role]",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				ok, err := a.Users.ChangeRole(ctx, args[0], access.Role(args[1]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("user %s: %w", args[0], apperr.ErrNotFound)
				}
				cmd.Printf("%s is now %s\n", args[0], args[1])
				return nil
			})
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate [user-id]",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Users.Deactivate(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("Deactivated %s\n", args[0])
				return nil
			})
		},
	}

	report := &cobra.Command{
		Use:   "report",
		Short: "Summarize users and activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Users.UsageReport(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, rep)
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Recount query activity from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Users.SyncWithAuditLog(ctx, a.AuditLog)
				if err != nil {
					return err
				}
				cmd.Printf("Updated %d users\n", n)
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [profiles.json]",
		Short: "Create users from a JSON array of employee profiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := readProfiles(args[0])
			if err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Users.ImportProfiles(ctx, profiles)
				if err != nil {
					return err
				}
				cmd.Printf("Imported %d of %d profiles\n", n, len(profiles))
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, create, changeRole, deactivate, report, sync, importCmd)
	return cmd
}

func readProfiles(path string) ([]access.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	var profiles []access.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return profiles, nil
}
