package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"compliance-rag/internal/app"
	"compliance-rag/internal/rag"
	"compliance-rag/internal/service"
)

func (r *runner) askCommand() *cobra.Command {
	var (
		user   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a compliance question",
		Long: `Retrieves the most relevant passages, generates a grounded answer and
records the query in the audit log.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.QueryService().Ask(ctx, service.QueryRequest{
					UserID:   user,
					Question: strings.Join(args, " "),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, resp)
				}
				printResponse(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id asking the question")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the response as JSON")
	return cmd
}

func (r *runner) batchCommand() *cobra.Command {
	var (
		user string
		file string
	)
	cmd := &cobra.Command{
		Use:   "batch [question...]",
		Short: "Ask several questions in order",
		Long: `Answers each question in turn. Questions come from the arguments or from
--file, one per line. Blank lines and lines starting with # are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			questions := args
			if file != "" {
				fromFile, err := readQuestions(file)
				if err != nil {
					return err
				}
				questions = append(questions, fromFile...)
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				responses, err := a.QueryService().AskBatch(ctx, service.BatchRequest{
					UserID:    user,
					Questions: questions,
				})
				// Completed answers are printed even when the batch stopped early.
				if len(responses) > 0 {
					if perr := printJSON(cmd, responses); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id asking the questions")
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one question per line")
	return cmd
}

func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open questions file: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}
	return questions, nil
}

func printResponse(cmd *cobra.Command, resp rag.Response) {
	cmd.Println(resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, s := range resp.Sources {
		cmd.Printf("  [%d] %s (%s)\n", i+1, s.File, s.ChunkID)
	}
}
