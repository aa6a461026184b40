package cli

import (
	"context"

	"github.com/spf13/cobra"

	"compliance-rag/internal/app"
	"compliance-rag/internal/registry"
)

func (r *runner) documentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage the document registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				docs, err := a.Registry.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, docs)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get [document-id]",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				doc, err := a.Registry.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})
		},
	}

	var reg registry.Registration
	register := &cobra.Command{
		Use:   "register [document-id]",
		Short: "Register a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.DocumentID = args[0]
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				created, err := a.Registry.Register(ctx, reg)
				if err != nil {
					return err
				}
				if !created {
					cmd.Printf("Document %s is already registered\n", reg.DocumentID)
					return nil
				}
				cmd.Printf("Registered %s\n", reg.DocumentID)
				return nil
			})
		},
	}
	register.Flags().StringVar(&reg.SourceURL, "source-url", "", "publication URL")
	register.Flags().StringVar(&reg.DocumentType, "type", "", "document type (default "+registry.DefaultDocumentType+")")
	register.Flags().StringVar(&reg.Classification, "classification", "", "classification (default "+registry.DefaultClassification+")")
	register.Flags().StringVar(&reg.Version, "version", "", "version (default "+registry.DefaultVersion+")")
	register.Flags().StringSliceVar(&reg.Tags, "tag", nil, "tag, repeatable")

	verify := &cobra.Command{
		Use:   "verify [document-id]",
		Short: "Mark a document as verified today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry.MarkVerified(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("Verified %s\n", args[0])
				return nil
			})
		},
	}

	archive := &cobra.Command{
		Use:   "archive [document-id]",
		Short: "Archive a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry.Archive(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("Archived %s\n", args[0])
				return nil
			})
		},
	}

	version := &cobra.Command{
		Use:   "version [document-id] [version]",
		Short: "Record a new document version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry.UpdateVersion(ctx, args[0], args[1]); err != nil {
					return err
				}
				cmd.Printf("%s is now version %s\n", args[0], args[1])
				return nil
			})
		},
	}

	var staleDays int
	stale := &cobra.Command{
		Use:   "stale",
		Short: "List active documents overdue for verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				docs, err := a.Registry.StaleDocuments(ctx, staleDays)
				if err != nil {
					return err
				}
				return printJSON(cmd, docs)
			})
		},
	}
	stale.Flags().IntVarP(&staleDays, "days", "d", registry.DefaultStaleDays, "days since verification")

	report := &cobra.Command{
		Use:   "report",
		Short: "Summarize the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Registry.UsageReport(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, rep)
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Recount references from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Registry.SyncWithAuditLog(ctx, a.AuditLog)
				if err != nil {
					return err
				}
				cmd.Printf("Updated %d documents\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, register, verify, archive, version, stale, report, sync)
	return cmd
}
