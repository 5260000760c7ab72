// Command surveyd serves the branching provenance survey and exports its answers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"provsurvey/internal/config"
	"provsurvey/internal/logging"
)

var (
	// Global flags, overriding the environment when set
	logLevel string
	devLog   bool
	revision string
	file     string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "surveyd",
	Short: "Branching questionnaire server",
	Long: `surveyd runs a multi-page survey whose next question depends on
earlier answers, stores every answer, and exports them as delimited text.

Configuration comes from the environment (HTTP_ADDR, ANSWER_DRIVER, DB_DSN,
SESSION_DRIVER, REDIS_URI, ...); flags override it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("dev") {
			cfg.LogDevelopment = devLog
		}
		if flags.Changed("revision") {
			cfg.SurveyRevision = revision
		}
		if flags.Changed("file") {
			cfg.SurveyFile = file
		}

		l, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (or set LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "Human readable logs (or set LOG_DEVELOPMENT)")
	rootCmd.PersistentFlags().StringVar(&revision, "revision", "v2", "Embedded survey revision (or set SURVEY_REVISION)")
	rootCmd.PersistentFlags().StringVar(&file, "file", "", "Survey revision YAML file (or set SURVEY_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(revisionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
