package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zen-systems/tierroute/pkg/app"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/logx"
	"github.com/zen-systems/tierroute/pkg/router"
	"github.com/zen-systems/tierroute/pkg/store"
)

var (
	configFile string
	envFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tierroute",
		Short: "Route prompts to the cheapest model that can handle them",
		Long: `Tierroute classifies each prompt as simple, moderate, or complex and
sends it to the backend configured for that tier. Every decision is
recorded with its cost, token usage, and latency.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to routing config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(backendsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: envFile, RoutingFile: configFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logx.Init(cfg.Settings.Log)
	return cfg, nil
}

// newApp builds the service. dryRun keeps decision records in memory.
func newApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app.App, error) {
	opts := []app.Option{app.WithLogger(log.Logger)}
	if dryRun {
		opts = append(opts, app.WithStore(store.NewMemory(0)))
	}
	return app.New(ctx, cfg, opts...)
}

func routeCmd() *cobra.Command {
	var maxTokens int
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Classify a prompt and send it to its tier's backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Engine.Route(cmd.Context(), args[0], maxTokens)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					router.DecisionRecord
					Response string `json:"response"`
				}{d.Record, d.Text})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, d.Text)
			fmt.Fprintln(out)
			printDecision(out, d.Record)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", router.DefaultMaxTokens, "completion token budget")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep the decision record in memory instead of the configured sink")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the decision as JSON")
	return cmd
}

func printDecision(out io.Writer, rec router.DecisionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id:\t%s\n", rec.ID)
	fmt.Fprintf(w, "tier:\t%s\n", rec.Tier)
	fmt.Fprintf(w, "backend:\t%s\n", rec.Backend)
	fmt.Fprintf(w, "rationale:\t%s\n", rec.Rationale)
	fmt.Fprintf(w, "cost:\t$%.6f\n", rec.CostUSD)
	fmt.Fprintf(w, "tokens:\t%d\n", rec.TokensUsed)
	fmt.Fprintf(w, "latency:\t%.1fms\n", rec.LatencyMs)
	w.Flush()
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [prompt]",
		Short: "Show the tier a prompt would be routed to, without generating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Engine.Classify(cmd.Context(), args[0])
			backend, ok := a.Engine.TierTable()[res.Tier]
			if !ok {
				backend = a.Engine.TierTable()["complex"] + " (fallback)"
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "tier:\t%s\n", res.Tier)
			fmt.Fprintf(w, "backend:\t%s\n", backend)
			fmt.Fprintf(w, "rationale:\t%s\n", res.Rationale)
			return w.Flush()
		},
	}
}

func statsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show request count and cost per backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Routing.Sink)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tREQUESTS\tCOST")
			for _, name := range stats.Backends() {
				b := stats.Breakdown[name]
				fmt.Fprintf(w, "%s\t%d\t$%.6f\n", name, b.Count, b.CostUSD)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "TOTAL\t%d\t$%.6f\n", stats.TotalRequests, stats.TotalCostUSD)
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print stats as JSON")
	return cmd
}

func logsCmd() *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent routing decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Routing.Sink)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTIER\tBACKEND\tCOST\tTOKENS\tLATENCY\tPROMPT")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%.6f\t%d\t%.0fms\t%s\n",
					rec.Timestamp.Local().Format(time.DateTime), rec.Tier, rec.Backend,
					rec.CostUSD, rec.TokensUsed, rec.LatencyMs, oneLine(rec.PromptPreview))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print records as JSON")
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
