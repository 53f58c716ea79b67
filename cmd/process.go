// =============================================================================
// SPED EFD Relatorios - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command of the tool. It
// orchestrates the whole pipeline over the files of the input directory.
//
// COMMAND USAGE:
//   efd-relatorios process [flags]
//
// FLAGS:
//   --dir       : Input directory (overrides input_dir)
//   --select    : Files to process by list number, e.g. "1..5 7 9 12..15"
//   --output    : Workbook path (overrides the generated name)
//   --sqlite    : SQLite database to record the run in (overrides sqlite_path)
//   --dry-run   : Process everything but write neither workbook nor database
//   --workers   : Pool size (overrides reserve_cpus and max_workers)
//
// PROCESSING PIPELINE:
//   1. Discover the input files
//   2. Apply the --select expression
//   3. Detect the variant of each file
//   4. Process the files concurrently, one session per file
//   5. Merge the rows in file order and renumber them
//   6. Apply the configured column rules
//   7. Build the consolidation tables
//   8. Write the workbook
//   9. Record the run in SQLite when configured
//   10. Print the summary
//
// A file that fails is reported in the summary and never stops the others.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/config"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/consolidation"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/converter"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/layout"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/storage/sqlite"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/xlsxwriter"
	"github.com/ginjaninja78/sped-efd-relatorios/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processOptions carries the flags that are not configuration overrides.
type processOptions struct {
	Select  string
	Output  string
	DryRun  bool
	Workers int
}

var (
	processDir    string
	processSQLite string
	processOpts   processOptions
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Flatten SPED EFD files into an XLSX workbook",
	Long: `The process command reads the SPED EFD files of the input directory,
rebuilds one row per fiscal item, and writes every row to a single workbook
together with the CST and CFOP consolidation sheets.

Files are processed concurrently. Each file is processed independently, and
an error in one file does not affect the others. The rows are numbered in
file order, so the output does not depend on the number of workers.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if processDir != "" {
			cfg.InputDir = processDir
		}
		if processSQLite != "" {
			cfg.SQLitePath = processSQLite
		}
		return runProcess(cmd.Context(), cfg, processOpts, newLogger(cfg), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processDir, "dir", "", "Input directory (overrides input_dir)")
	processCmd.Flags().StringVar(&processOpts.Select, "select", "",
		`Files to process by list number, e.g. "1..5 7 9 12..15" (default: all)`)
	processCmd.Flags().StringVar(&processOpts.Output, "output", "", "Workbook path (default: generated in output_dir)")
	processCmd.Flags().StringVar(&processSQLite, "sqlite", "", "SQLite database to record the run in")
	processCmd.Flags().BoolVar(&processOpts.DryRun, "dry-run", false, "Process the files without writing any output")
	processCmd.Flags().IntVar(&processOpts.Workers, "workers", 0, "Number of files processed at once (default: CPUs minus reserve_cpus)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess runs the pipeline and writes the summary to out.
func runProcess(ctx context.Context, cfg *config.MainConfig, opts processOptions, logger *slog.Logger, out io.Writer) error {
	startTime := time.Now()
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	// =========================================================================
	// STEP 1 AND 2: DISCOVER AND SELECT
	// =========================================================================

	fm := utils.NewFileManager()
	files, err := fm.Discover(ctx, cfg.InputDir, cfg.Extension)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("process.no_files", "dir", cfg.InputDir, "extension", cfg.Extension)
		return nil
	}

	picked, err := ParseSelection(opts.Select, len(files))
	if err != nil {
		return err
	}
	selected := make([]utils.InputFile, len(picked))
	for i, idx := range picked {
		selected[i] = files[idx]
	}

	// =========================================================================
	// STEP 3: DETECT VARIANTS AND LOAD LAYOUTS
	// =========================================================================

	inputs := inspect(ctx, fm, cfg, selected, logger)
	jobs := make([]converter.Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = converter.Job{Path: in.Path, Variant: in.Variant, Encoding: cfg.Encoding}
	}

	catalogs, err := loadCatalogs(cfg.LayoutWorkbook)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 4: PROCESS FILES CONCURRENTLY
	// =========================================================================

	workers := opts.Workers
	if workers <= 0 {
		workers = converter.Workers(cfg.Reserve(), cfg.MaxWorkers)
	}
	logger.Info("process.start", "files", len(jobs), "workers", workers)

	results := converter.RunAll(ctx, jobs, workers, func(ctx context.Context, job converter.Job) converter.Result {
		session := converter.Config{Catalog: catalogs[job.Variant], Files: fm}
		return converter.New(job.Path, job.Variant, job.Encoding, session, logger).Run(ctx)
	})

	// =========================================================================
	// STEP 5 TO 7: MERGE, COLUMN RULES, CONSOLIDATE
	// =========================================================================

	merged := converter.Merge(results, &converter.Counter{})

	transformer, err := converter.NewTransformer(cfg.ColumnRules)
	if err != nil {
		return fmt.Errorf("failed to compile column rules: %w", err)
	}
	if err := transformer.TransformRows(merged.Rows); err != nil {
		return fmt.Errorf("failed to apply column rules: %w", err)
	}

	tables := []consolidation.Table{
		consolidation.Contribuicoes(merged.ByVariant[types.Contribuicoes]),
		consolidation.ICMSIPI(merged.ByVariant[types.ICMSIPI]),
	}

	// =========================================================================
	// STEP 8 AND 9: WRITE OUTPUTS
	// =========================================================================

	var outputFile string
	if !opts.DryRun && len(merged.Succeeded) > 0 {
		outputFile = outputPath(cfg, opts, merged.Succeeded)
		if err := ensureDir(cfg, opts); err != nil {
			return err
		}
		if err := xlsxwriter.Write(outputFile, merged.Rows, tables, xlsxwriter.Options{
			SheetRowLimit: cfg.SheetRowLimit,
			Title:         strings.TrimSuffix(filepath.Base(outputFile), filepath.Ext(outputFile)),
			Subject:       "Itens de documentos fiscais da SPED EFD",
			Creator:       "efd-relatorios " + Version,
		}); err != nil {
			return err
		}
		logger.Info("process.workbook", "path", outputFile, "rows", len(merged.Rows))

		if cfg.SQLitePath != "" {
			if err := saveRun(ctx, cfg.SQLitePath, sqlite.Run{ID: runID, StartedAt: startTime}, merged); err != nil {
				return fmt.Errorf("failed to record run in %s: %w", cfg.SQLitePath, err)
			}
			logger.Info("process.sqlite", "path", cfg.SQLitePath)
		}
	}

	// =========================================================================
	// STEP 10: SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:           runID,
		StartTime:       startTime,
		EndTime:         time.Now(),
		TotalFiles:      len(results),
		SuccessfulFiles: len(merged.Succeeded),
		FailedFiles:     len(merged.Failed),
		TotalRows:       len(merged.Rows),
		OutputFile:      outputFile,
	}
	for _, r := range merged.Succeeded {
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   filepath.Base(r.FilePath),
			Variant:     r.Variant.String(),
			Encoding:    r.Encoding,
			Rows:        r.Stats.Rows,
			ProcessTime: r.Stats.ProcessingTime,
		})
	}
	for _, r := range merged.Failed {
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    filepath.Base(r.FilePath),
			ErrorMessage: r.Error.Error(),
		})
	}
	logger.Info("process.done", "files", summary.TotalFiles, "failed", summary.FailedFiles,
		"rows", summary.TotalRows, "elapsed", time.Since(startTime).Round(time.Millisecond))

	return utils.WriteSummary(out, summary)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadCatalogs loads the layouts of both variants, patched by the layout
// workbook when one is configured.
func loadCatalogs(workbook string) (map[types.Variant]*layout.Catalog, error) {
	catalogs := make(map[types.Variant]*layout.Catalog)
	for _, variant := range []types.Variant{types.Contribuicoes, types.ICMSIPI} {
		catalog, err := layout.Load(variant)
		if err != nil {
			return nil, err
		}
		if workbook != "" {
			if catalog, err = layout.LoadWorkbook(workbook, catalog); err != nil {
				return nil, err
			}
		}
		catalogs[variant] = catalog
	}
	return catalogs, nil
}

// outputPath returns --output, or a name built from output_name_format and
// the period covered by the processed files.
func outputPath(cfg *config.MainConfig, opts processOptions, succeeded []converter.Result) string {
	if opts.Output != "" {
		return opts.Output
	}
	periods := make([]utils.Period, len(succeeded))
	for i, r := range succeeded {
		periods[i] = utils.Period{Ini: r.Opening.DTIni, Fin: r.Opening.DTFin}
	}
	params := map[string]string{}
	if ini, fim, ok := utils.PeriodRange(periods); ok {
		params["ini"], params["fim"] = ini, fim
	}
	return filepath.Join(cfg.OutputDir, utils.GenerateOutputFileName(cfg.OutputNameFormat, params))
}

func ensureDir(cfg *config.MainConfig, opts processOptions) error {
	if opts.Output == "" {
		return cfg.EnsureOutputDir()
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// saveRun records the processed files and rows of a run.
func saveRun(ctx context.Context, dsn string, run sqlite.Run, merged converter.Merged) error {
	sink, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer sink.Close()

	files := make([]sqlite.File, len(merged.Succeeded))
	for i, r := range merged.Succeeded {
		files[i] = sqlite.File{
			Fingerprint: r.Fingerprint,
			Path:        r.FilePath,
			Variant:     r.Variant,
			Encoding:    r.Encoding,
			DTIni:       r.Opening.DTIni,
			DTFin:       r.Opening.DTFin,
		}
	}
	return sink.SaveRun(ctx, run, files, merged.Rows)
}
