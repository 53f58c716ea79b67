// =============================================================================
// SPED EFD Relatorios - Main Entry Point
// =============================================================================
//
// USAGE:
//   efd-relatorios process   - Flatten the SPED EFD files of the input directory
//   efd-relatorios list      - List the input files with their selection numbers
//   efd-relatorios version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, flattening, enrichment and export
//   - pkg/       : File utilities shared by the commands
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sped-efd-relatorios/cmd"
)

func main() {
	cmd.Execute()
}
