package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/tierroute/pkg/router"
)

type batchResult struct {
	prompt   string
	decision *router.Decision
	err      error
}

func batchCmd() *cobra.Command {
	var file string
	var workers int
	var maxTokens int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Route every line of a file concurrently",
		Long: `Reads one prompt per line (blank lines and lines starting with # are
skipped) and routes them with up to -j requests in flight. Use -f - to read
from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := readPrompts(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				return fmt.Errorf("no prompts in %s", file)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			results := make([]batchResult, len(prompts))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(workers, 1))
			for i, p := range prompts {
				g.Go(func() error {
					d, err := a.Engine.Route(ctx, p, maxTokens)
					results[i] = batchResult{prompt: p, decision: d, err: err}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return printBatch(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one prompt per line, or - for stdin")
	cmd.Flags().IntVarP(&workers, "jobs", "j", 4, "concurrent requests")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", router.DefaultMaxTokens, "completion token budget per prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep decision records in memory instead of the configured sink")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readPrompts(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts, scanner.Err()
}

func printBatch(out io.Writer, results []batchResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIER\tBACKEND\tCOST\tTOKENS\tLATENCY\tPROMPT")

	var cost float64
	var failed int
	for i, r := range results {
		preview := oneLine(r.prompt)
		if len([]rune(preview)) > 40 {
			preview = string([]rune(preview)[:40]) + "..."
		}
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\t-\t%s (error: %v)\n", i+1, preview, r.err)
			continue
		}
		rec := r.decision.Record
		cost += rec.CostUSD
		fmt.Fprintf(w, "%d\t%s\t%s\t$%.6f\t%d\t%.0fms\t%s\n",
			i+1, rec.Tier, rec.Backend, rec.CostUSD, rec.TokensUsed, rec.LatencyMs, preview)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "TOTAL\t\t\t$%.6f\t\t\t%d routed, %d failed\n", cost, len(results)-failed, failed)
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(results))
	}
	return nil
}
