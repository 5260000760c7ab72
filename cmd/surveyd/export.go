package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"provsurvey/internal/app"
	"provsurvey/internal/config"
	"provsurvey/internal/service"
)

var (
	exportOut      string
	exportRaw      bool
	exportSep      string
	exportInternal string
)

// exportCmd writes every collected answer as delimited text
var exportCmd = &cobra.Command{
	Use:   "export [receiver]",
	Short: "Export all answers, one row per respondent",
	Long: `Export all answers as delimited text. Columns follow the survey order,
radio answers and checked boxes print their labels unless --raw is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "-", "Output file, - for stdout")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "Print raw keys instead of labels")
	exportCmd.Flags().StringVar(&exportSep, "sep", "", "Field separator (or set EXPORT_SEPARATOR)")
	exportCmd.Flags().StringVar(&exportInternal, "isep", "", "Separator inside multi-valued cells (or set EXPORT_INTERNAL_SEPARATOR)")
}

func runExport(cmd *cobra.Command, args []string) error {
	receiver := "cli"
	if len(args) == 1 {
		receiver = args[0]
	}
	if cmd.Flags().Changed("sep") {
		cfg.ExportSeparator = exportSep
	}
	if cmd.Flags().Changed("isep") {
		cfg.ExportInternalSeparator = exportInternal
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()
		w = bw
	}

	n, err := exportAnswers(cmd.Context(), cfg, logger, w, receiver, exportRaw)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d respondents\n", n)
	return nil
}

func exportAnswers(ctx context.Context, cfg *config.Config, log *zap.Logger, w io.Writer, receiver string, raw bool) (int, error) {
	if utf8.RuneCountInString(cfg.ExportSeparator) != 1 {
		return 0, service.ErrInvalidSeparator
	}
	sep, _ := utf8.DecodeRuneInString(cfg.ExportSeparator)

	reg, err := app.LoadRegistry(cfg)
	if err != nil {
		return 0, err
	}
	store, err := app.OpenAnswers(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer store.Close(context.Background())

	return service.NewExportService(reg, store.Answers, log).Export(ctx, w, service.ExportOptions{
		Receiver:          receiver,
		Raw:               raw,
		Separator:         sep,
		InternalSeparator: cfg.ExportInternalSeparator,
	})
}
