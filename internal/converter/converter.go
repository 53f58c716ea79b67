// =============================================================================
// SPED EFD Relatorios - Converter Module
// =============================================================================
//
// This module contains the per-file session. It orchestrates the pipeline for
// a single SPED EFD file, from raw bytes to enriched item rows.
//
// CONVERSION PIPELINE:
//   1. Read the file and fingerprint its content
//   2. Detect the encoding when none is forced
//   3. Tokenize the lines into registers
//   4. Build the master-data lookup tables from block 0
//   5. Flatten blocks A to K into item rows
//   6. Check every row and enrich it
//
// CONCURRENCY:
//   A Converter and everything it builds belong to one session. Sessions
//   share nothing mutable, so the pool runs them side by side.
//
// =============================================================================

package converter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/enrich"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/flatten"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/layout"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/lookup"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/tokenizer"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/validation"
	"github.com/ginjaninja78/sped-efd-relatorios/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Variant and Encoding are the ones the file was read with.
	Variant  types.Variant
	Encoding string

	// Rows are the enriched item rows, numbered 1..n in "Linhas".
	// The merge phase renumbers them across files.
	Rows []types.Row

	// Opening carries the identification of register 0000.
	Opening Opening

	// Fingerprint is the HighwayHash of the file content.
	Fingerprint string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// Opening is the identification read from register 0000.
type Opening struct {
	DTIni string
	DTFin string
	CNPJ  string
	Nome  string
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Registers is the number of known registers read.
	Registers int

	// Unknown is the number of lines skipped for an unknown register code.
	Unknown int

	// Short is the number of registers with fewer values than declared.
	Short int

	// Rows is the number of item rows produced.
	Rows int

	// Warnings is the number of row checks that failed.
	Warnings int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Config holds what sessions share read-only.
type Config struct {
	// Catalog replaces the embedded layouts of the variant when set.
	Catalog *layout.Catalog

	// Files reads the input. A new FileManager is used when nil.
	Files *utils.FileManager
}

// Logger is an interface for logging. *slog.Logger implements it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Converter handles the conversion of a single SPED EFD file.
type Converter struct {
	path     string
	variant  types.Variant
	encoding string
	cfg      Config
	logger   Logger
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - path: The input file, a local path or an afs URL.
//   - variant: The bookkeeping variant of the file.
//   - encoding: The character encoding, or "" to detect it.
//   - cfg: Shared read-only settings.
//   - logger: Receives progress and warnings.
func New(path string, variant types.Variant, encoding string, cfg Config, logger Logger) *Converter {
	if cfg.Files == nil {
		cfg.Files = utils.NewFileManager()
	}
	return &Converter{
		path:     path,
		variant:  variant,
		encoding: encoding,
		cfg:      cfg,
		logger:   logger,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for the file. Failures are reported in the
// Result, never panicked or returned separately.
//
// Cancellation is honoured by the pool before a file starts. Once started, a
// file runs to completion so no partial set of rows is ever produced.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	result = Result{
		FilePath: c.path,
		Variant:  c.variant,
	}
	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	c.logger.Info("file.start", "file", c.path, "variant", c.variant.String())

	if err := c.run(context.WithoutCancel(ctx), &result); err != nil {
		result.Error = err
		c.logger.Error("file.failed", "file", c.path, "err", err)
		return result
	}

	result.Success = true
	c.logger.Info("file.done", "file", c.path, "rows", result.Stats.Rows,
		"elapsed", time.Since(startTime).Round(time.Millisecond))
	return result
}

func (c *Converter) run(ctx context.Context, result *Result) error {
	if !c.variant.Valid() {
		return fmt.Errorf("%w: %q", layout.ErrUnknownVariant, c.variant)
	}

	// =========================================================================
	// STEP 1: READ AND FINGERPRINT
	// =========================================================================

	data, err := c.cfg.Files.Read(ctx, c.path)
	if err != nil {
		return err
	}
	if result.Fingerprint, err = utils.Fingerprint(data); err != nil {
		return fmt.Errorf("failed to fingerprint file: %w", err)
	}

	// =========================================================================
	// STEP 2: ENCODING
	// =========================================================================

	result.Encoding = c.encoding
	if result.Encoding == "" {
		result.Encoding = utils.DetectEncoding(data)
	}
	c.logger.Debug("file.encoding", "file", c.path, "encoding", result.Encoding)

	// =========================================================================
	// STEP 3: TOKENIZE
	// =========================================================================

	catalog := c.cfg.Catalog
	if catalog == nil {
		if catalog, err = layout.Load(c.variant); err != nil {
			return fmt.Errorf("failed to load layouts: %w", err)
		}
	}

	scanner, err := tokenizer.New(bytes.NewReader(data), catalog, result.Encoding)
	if err != nil {
		return fmt.Errorf("failed to open tokenizer: %w", err)
	}
	regs, err := tokenizer.ReadAll(scanner)
	if err != nil {
		return fmt.Errorf("failed to tokenize: %w", err)
	}
	stats := scanner.Stats()
	result.Stats.Registers = stats.Registers
	result.Stats.Unknown = stats.Unknown
	result.Stats.Short = stats.Short
	if stats.Unknown > 0 {
		c.logger.Debug("file.unknown_registers", "file", c.path, "count", stats.Unknown)
	}

	// =========================================================================
	// STEP 4: LOOKUP TABLES
	// =========================================================================

	tables := lookup.Build(regs)
	est, part, items, accounts := tables.Len()
	c.logger.Debug("file.lookup", "file", c.path,
		"establishments", est, "participants", part, "items", items, "accounts", accounts)

	// =========================================================================
	// STEP 5 AND 6: FLATTEN, CHECK, ENRICH
	// =========================================================================

	flattener := flatten.New(c.variant, tables)
	enricher := enrich.New(c.variant, c.path, tables)

	for _, reg := range regs {
		if reg.Code == "0000" {
			result.Opening = Opening{
				DTIni: reg.Value("DT_INI"),
				DTFin: reg.Value("DT_FIN"),
				CNPJ:  reg.Value("CNPJ"),
				Nome:  reg.Value("NOME"),
			}
		}

		row, ok := flattener.Feed(reg)
		if !ok {
			continue
		}
		if check := validation.ValidateRow(row); check.WarningCount > 0 {
			result.Stats.Warnings += check.WarningCount
			for _, w := range check.Errors {
				c.logger.Debug("row.warning", "file", c.path, "warning", w.Error())
			}
		}
		result.Rows = append(result.Rows, enricher.Enrich(row))
	}
	result.Stats.Rows = len(result.Rows)

	if result.Stats.Warnings > 0 {
		c.logger.Warn("file.warnings", "file", c.path, "count", result.Stats.Warnings)
	}
	return nil
}
