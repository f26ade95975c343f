package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/app"
	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/router"
)

func backendsCmd() *cobra.Command {
	var validateFlag bool
	var modelsFlag bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List configured backends and the tier table",
		Long: `Lists each configured backend with its type, resolved model, and status.

Use --validate to check backend models against models.yaml and probe local
servers that expose a health endpoint. Use --models to print the provider
model catalog with its aliases.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			aliases, err := app.LoadAliases()
			if err != nil {
				return err
			}

			if modelsFlag {
				return printCatalog(cmd.OutOrStdout(), aliases)
			}

			built := make(map[string]adapter.Backend, len(cfg.Routing.Backends))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tTYPE\tMODEL\tSTATUS")
			for _, bc := range cfg.Routing.Backends {
				model := "-"
				if bc.Model != "" {
					model = aliases.Resolve(bc.Model)
				}
				typ := aliases.BackendType(bc)
				b, err := adapter.Build(cmd.Context(), bc, cfg.Credentials, aliases)
				if err == nil {
					built[bc.Name] = b
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bc.Name, orDash(typ), model, backendStatus(typ, cfg.Credentials, err))
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "TIER\tBACKEND")
			table, err := router.TierTableFromConfig(cfg.Routing.Tiers)
			if err != nil {
				return err
			}
			for _, tier := range classifier.Tiers() {
				name, ok := table[tier]
				if !ok {
					name = table[classifier.TierComplex] + " (fallback)"
				}
				fmt.Fprintf(w, "%s\t%s\n", tier, name)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if validateFlag {
				return validateBackends(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, aliases, built)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validateFlag, "validate", false, "validate models and probe backend health")
	cmd.Flags().BoolVar(&modelsFlag, "models", false, "print the provider model catalog")
	return cmd
}

// backendStatus describes a backend of type typ after a Build attempt.
func backendStatus(typ string, creds config.Credentials, buildErr error) string {
	switch {
	case errors.Is(buildErr, adapter.ErrMissingCredential):
		return "no key"
	case buildErr != nil:
		return "error: " + buildErr.Error()
	case typ == config.BackendSimulated:
		return "simulated"
	case typ != config.BackendOllama && !creds.Has(typ):
		return "simulated stand-in (no key)"
	default:
		return "ready"
	}
}

func printCatalog(out io.Writer, aliases *config.ModelAliases) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tALIASES")
	for _, provider := range slices.Sorted(maps.Keys(aliases.Providers)) {
		for _, model := range aliases.Providers[provider] {
			fmt.Fprintf(w, "%s\t%s\t%s\n", provider, model, orDash(strings.Join(aliases.AliasesFor(model), ", ")))
		}
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func validateBackends(ctx context.Context, out, errOut io.Writer, cfg *config.Config, aliases *config.ModelAliases, built map[string]adapter.Backend) error {
	var problems int

	for _, err := range aliases.ValidateRoutingConfig(cfg.Routing) {
		fmt.Fprintf(errOut, "  - %v\n", err)
		problems++
	}

	for name := range cfg.Routing.Tiers {
		backend := cfg.Routing.Tiers[name]
		if _, ok := cfg.Routing.Backend(backend); !ok {
			fmt.Fprintf(errOut, "  - tier %s uses undeclared backend %q\n", name, backend)
			problems++
		}
	}

	for name, b := range built {
		hc, ok := b.(adapter.HealthChecker)
		if !ok {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := hc.Health(probeCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(errOut, "  - %s: %v\n", name, err)
			problems++
			continue
		}
		fmt.Fprintf(out, "%s is reachable\n", name)
	}

	if problems > 0 {
		return fmt.Errorf("validation failed: %d problem(s)", problems)
	}
	fmt.Fprintln(out, "All backends are valid.")
	return nil
}
