package cli

import (
	"context"

	"github.com/spf13/cobra"

	"compliance-rag/internal/app"
)

func (r *runner) indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the vector index",
	}

	var (
		rebuild bool
		corpus  string
	)
	build := &cobra.Command{
		Use:   "build",
		Short: "Chunk, embed and index the corpus",
		Long: `Loads every document under the corpus path, splits it into token-bounded
chunks, embeds and stores them, and registers the documents.

Without --rebuild, chunk ids that are already indexed fail the build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				path := corpus
				if path == "" {
					path = a.Config.CorpusPath
				}
				stats, err := a.Pipeline.Build(ctx, path, rebuild)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
	build.Flags().BoolVar(&rebuild, "rebuild", false, "clear the collection before indexing")
	build.Flags().StringVar(&corpus, "corpus", "", "corpus file or directory (default $CORPUS_PATH)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of indexed chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Index.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}

	cmd.AddCommand(build, stats)
	return cmd
}
