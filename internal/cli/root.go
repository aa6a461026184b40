// Package cli implements the compliancectl command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"compliance-rag/internal/app"
	"compliance-rag/internal/contextutil"
)

// Opener builds the application for one command.
type Opener func(ctx context.Context) (*app.App, error)

type runner struct {
	open Opener
}

// NewRootCommand returns the compliancectl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	r := &runner{open: open}

	root := &cobra.Command{
		Use:   "compliancectl",
		Short: "Operate the compliance knowledge assistant",
		Long: `compliancectl builds the vector index, answers compliance questions, and
manages the governance records: audit log, document registry and users.`,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)

	root.AddCommand(
		r.indexCommand(),
		r.askCommand(),
		r.batchCommand(),
		r.dashboardCommand(),
		r.auditCommand(),
		r.documentsCommand(),
		r.usersCommand(),
		r.syncCommand(),
	)
	return root
}

// run opens the application, calls fn and closes it again.
func (r *runner) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to close resources", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// requireUser rejects an empty --user flag.
func requireUser(user string) error {
	if user == "" {
		return errors.New("--user is required")
	}
	return nil
}
