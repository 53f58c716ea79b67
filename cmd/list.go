// =============================================================================
// SPED EFD Relatorios - List Command
// =============================================================================
//
// This file defines the 'list' command, which prints the discovered input
// files with the number each one has for 'process --select'.
//
// COMMAND USAGE:
//   efd-relatorios list [--dir DIR]
//
// OUTPUT:
//     1  EFD Contribuições  ISO-8859-1      1843200  PISCOFINS_202001.txt
//     2  EFD ICMS_IPI       UTF-8            922113  SPED_202001.txt
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/config"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
	"github.com/ginjaninja78/sped-efd-relatorios/pkg/utils"
)

// headSize is how much of each file is read to detect its variant and
// encoding before processing.
const headSize = 64 * 1024

var listDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the SPED EFD files of the input directory",
	Long: `The list command prints every file of the input directory with its
detected variant, encoding and size. The numbers on the left are the ones
accepted by 'process --select'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listDir != "" {
			cfg.InputDir = listDir
		}
		return runList(cmd.Context(), cfg, newLogger(cfg), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listDir, "dir", "", "Input directory (overrides input_dir)")
}

func runList(ctx context.Context, cfg *config.MainConfig, logger *slog.Logger, out io.Writer) error {
	fm := utils.NewFileManager()
	files, err := fm.Discover(ctx, cfg.InputDir, cfg.Extension)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No %s files found in %s\n", cfg.Extension, cfg.InputDir)
		return nil
	}
	for i, f := range inspect(ctx, fm, cfg, files, logger) {
		fmt.Fprintf(out, "%3d  %-18s %-12s %12d  %s\n", i+1, f.Variant, f.Encoding, f.Size, f.Name)
	}
	return nil
}

// =============================================================================
// FILE INSPECTION
// =============================================================================

// inputFile is a discovered file with its detected variant and encoding.
type inputFile struct {
	utils.InputFile
	Variant  types.Variant
	Encoding string
}

// inspect detects the variant and encoding of every file from its first
// bytes. The configured encoding, when set, replaces detection. A file that
// cannot be read is reported with the name-based guess; processing it will
// fail with the actual read error.
func inspect(ctx context.Context, fm *utils.FileManager, cfg *config.MainConfig, files []utils.InputFile, logger *slog.Logger) []inputFile {
	out := make([]inputFile, len(files))
	for i, f := range files {
		out[i] = inputFile{InputFile: f, Encoding: cfg.Encoding}

		head, err := fm.Head(ctx, f.Path, headSize)
		if err != nil {
			logger.Warn("file.inspect_failed", "file", f.Path, "err", err)
			out[i].Variant = utils.DetectVariant(f.Name, "")
			continue
		}
		out[i].Variant = utils.DetectVariant(f.Name, utils.FirstLine(head))
		if out[i].Encoding == "" {
			out[i].Encoding = utils.DetectEncoding(head)
		}
	}
	return out
}
