// Command seed drives simulated respondents through the survey to populate
// an answer store for export demos.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"provsurvey/internal/app"
	"provsurvey/internal/config"
	"provsurvey/internal/logging"
	"provsurvey/internal/service"
)

var (
	count int
	seed  uint64
)

var rootCmd = &cobra.Command{
	Use:          "seed",
	Short:        "Populate the answer store with simulated respondents",
	SilenceUsage: true,
	RunE:         runSeed,
}

func init() {
	rootCmd.Flags().IntVarP(&count, "count", "n", 25, "Number of respondents")
	rootCmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	reg, err := app.LoadRegistry(cfg)
	if err != nil {
		return err
	}
	store, err := app.OpenAnswers(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	sim := newSimulator(service.NewFlowService(reg, store.Answers, log), rand.New(rand.NewPCG(seed, seed^0x5eed)), cfg.Locales)
	for i := 0; i < count; i++ {
		rid, pages, err := sim.run(ctx)
		if err != nil {
			return fmt.Errorf("respondent %d: %w", i, err)
		}
		log.Info("respondent simulated", zap.String("respondent", rid), zap.Int("pages", pages))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d respondents (revision %s)\n", count, reg.Revision())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
