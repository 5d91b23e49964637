// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/internal/log"
	"github.com/teradata-labs/quarry/pkg/export"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/pipeline"
)

// maxPrintedRows caps the rows rendered to the terminal.
const maxPrintedRows = 50

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question",
	Long: `Answer one natural-language question: generate SQL, run it, and print the
results with insights and follow-up questions.

Examples:
  quarry ask --demo "What is the total volume brewed per beer style?"
  quarry ask --agent react --mode pro "Which distributor received the most IPA?"
  quarry ask --demo --export results.xlsx "List the active batches"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

type askFlags struct {
	agent    string
	mode     string
	export   string
	asJSON   bool
	showPlan bool
}

var askOpts askFlags

func init() {
	askCmd.Flags().StringVar(&askOpts.agent, "agent", "", "Agent to use (auto, fast, react; default from config)")
	askCmd.Flags().StringVar(&askOpts.mode, "mode", "", "Insights mode (quick, pro; default from config)")
	askCmd.Flags().StringVar(&askOpts.export, "export", "", "Write the results to this .xlsx file")
	askCmd.Flags().BoolVar(&askOpts.asJSON, "json", false, "Print the full answer as JSON")
	askCmd.Flags().BoolVar(&askOpts.showPlan, "trace", false, "Print the ReAct tool trace")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, config, log.Logger())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if err := app.Start(ctx); err != nil {
		return err
	}

	return ask(ctx, app, cmd.OutOrStdout(), strings.Join(args, " "), askOpts)
}

func ask(ctx context.Context, app *App, out io.Writer, question string, opts askFlags) error {
	answer := app.Service.Ask(ctx, pipeline.Request{
		Question: question,
		Agent:    opts.agent,
		Mode:     opts.mode,
	})

	if opts.export != "" {
		if err := exportAnswer(opts.export, answer); err != nil {
			return err
		}
		app.Logger.Info("results exported", zap.String("path", opts.export))
	}

	if opts.asJSON {
		return printJSON(out, answer)
	}
	printAnswer(out, answer, opts.showPlan)
	return nil
}

func exportAnswer(path string, answer *pipeline.Answer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	werr := export.WriteXLSX(f, export.Report{
		Question: answer.Question,
		SQL:      answer.SQL,
		Insights: answer.Insights,
		Results:  answer.Results,
		Created:  time.Now(),
	})
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func printAnswer(out io.Writer, answer *pipeline.Answer, showTrace bool) {
	fmt.Fprintf(out, "Agent: %s", answer.Agent)
	if answer.FellBack {
		fmt.Fprint(out, " (after fast path failed)")
	}
	fmt.Fprintln(out)

	if answer.SQL != "" {
		fmt.Fprintf(out, "\nSQL:\n  %s\n", answer.SQL)
	}
	if answer.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", answer.Error)
	}
	if answer.Results != nil && answer.Error == "" {
		fmt.Fprintf(out, "\nResults (%d rows):\n", answer.Results.RowCount())
		printResults(out, answer.Results)
	}
	if showTrace && len(answer.Trace) > 0 {
		fmt.Fprintln(out, "\nTrace:")
		for _, step := range answer.Trace {
			fmt.Fprintf(out, "  [%s] %s %s\n", step.State, step.Kind, step.Tool)
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(answer.Insights))

	if len(answer.FollowUps) > 0 {
		fmt.Fprintln(out, "\nYou could also ask:")
		for _, q := range answer.FollowUps {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
}

func printResults(out io.Writer, result *fabric.QueryResult) {
	if len(result.Columns) == 0 {
		fmt.Fprintln(out, "  (no rows)")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  %s\n", strings.Join(result.Columns, "\t"))
	for i, row := range result.Rows {
		if i == maxPrintedRows {
			fmt.Fprintf(tw, "  ... %d more rows\n", len(result.Rows)-maxPrintedRows)
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		fmt.Fprintf(tw, "  %s\n", strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
