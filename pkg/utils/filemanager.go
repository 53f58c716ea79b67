// =============================================================================
// SPED EFD Relatorios - File Manager Utility
// =============================================================================
//
// This module provides the file utilities of the pipeline:
//   - Input discovery and reads (through viant/afs, so any afs URL works)
//   - Variant and encoding detection
//   - Content fingerprints
//   - Output file naming
//   - Processing summary
//
// =============================================================================

package utils

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minio/highwayhash"
	"github.com/viant/afs"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// InputFile is one discovered SPED EFD file.
type InputFile struct {
	// Path is the location the file was listed under.
	Path string

	// Name is the base name.
	Name string

	// Size is the file size in bytes.
	Size int64
}

// FileManager handles file operations for the pipeline.
type FileManager struct {
	fs afs.Service
}

// NewFileManager creates a FileManager backed by a new afs service.
func NewFileManager() *FileManager {
	return &FileManager{fs: afs.New()}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// Discover lists the regular files of dir whose extension matches ext
// (case-insensitive), sorted by name.
//
// PARAMETERS:
//   - dir: A local directory or any afs URL.
//   - ext: The extension to keep, e.g. ".txt". Empty keeps every file.
//
// RETURNS:
//   - The matching files.
//   - An error if the directory cannot be listed.
func (fm *FileManager) Discover(ctx context.Context, dir, ext string) ([]InputFile, error) {
	objects, err := fm.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []InputFile
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(obj.Name()), ext) {
			continue
		}
		path := obj.URL()
		if !strings.Contains(dir, "://") {
			path = filepath.Join(dir, obj.Name())
		}
		files = append(files, InputFile{
			Path: path,
			Name: obj.Name(),
			Size: obj.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the full content of the file at path.
func (fm *FileManager) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := fm.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Head returns at most n bytes from the start of the file at path. A cut
// short read ends at the last complete line so no character is split.
func (fm *FileManager) Head(ctx context.Context, path string, n int) ([]byte, error) {
	reader, err := fm.fs.OpenURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == n {
		if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
			data = data[:i+1]
		}
	}
	return data, nil
}

// =============================================================================
// DETECTION
// =============================================================================

const (
	EncodingUTF8     = "UTF-8"
	EncodingISO88591 = "ISO-8859-1"
)

// FirstLine returns the first line of data without its line terminator or a
// leading UTF-8 byte order mark.
func FirstLine(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimRight(string(data), "\r")
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectVariant tells EFD Contribuições from EFD ICMS_IPI.
//
// A base name containing "PISCOFINS" is EFD Contribuições. Otherwise the 0000
// line decides: DT_INI is the fifth field after REG in EFD Contribuições
// and the third in EFD ICMS_IPI. Anything else is taken as EFD ICMS_IPI.
func DetectVariant(name, firstLine string) types.Variant {
	if strings.Contains(strings.ToUpper(filepath.Base(name)), "PISCOFINS") {
		return types.Contribuicoes
	}

	firstLine = strings.TrimPrefix(firstLine, string(utf8BOM))
	values := strings.Split(strings.Trim(strings.TrimSpace(firstLine), "|"), "|")
	if len(values) == 0 || values[0] != "0000" {
		return types.ICMSIPI
	}
	switch {
	case len(values) > 5 && isDate(values[5]):
		return types.Contribuicoes
	case len(values) > 3 && isDate(values[3]):
		return types.ICMSIPI
	}
	return types.ICMSIPI
}

func isDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := time.Parse("02012006", s)
	return err == nil
}

// DetectEncoding returns "UTF-8" when sample is valid UTF-8 and
// "ISO-8859-1" otherwise.
func DetectEncoding(sample []byte) string {
	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	return EncodingISO88591
}

// =============================================================================
// FINGERPRINT
// =============================================================================

var fingerprintKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint returns the 64-bit HighwayHash of data as 16 hex digits.
func Fingerprint(data []byte) (string, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	if _, err := hash.Write(data); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates the workbook file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {ini}       - Start of the period (from params)
//               {fim}       - End of the period (from params)
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//   - params: A map of placeholder values. Missing {ini} or {fim} values
//             are replaced by a UUID.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "Info do Contribuinte - SPED EFD - {ini} a {fim}.xlsx"
//   params: {"ini": "01-01-2020", "fim": "31-12-2020"}
//   output: "Info do Contribuinte - SPED EFD - 01-01-2020 a 31-12-2020.xlsx"
func GenerateOutputFileName(format string, params map[string]string) string {
	id := uuid.New().String()

	replacements := map[string]string{
		"{uuid}":      id,
		"{timestamp}": time.Now().Format("20060102_150405"),
		"{ini}":       id,
		"{fim}":       id,
	}
	for key, value := range params {
		if value != "" {
			replacements["{"+key+"}"] = value
		}
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// Period is the apuração period of one file, as ddmmaaaa dates.
type Period struct {
	Ini string
	Fin string
}

// PeriodRange returns the earliest start and the latest end of periods as
// dd-mm-aaaa. ok is false when no valid date was found on either side.
func PeriodRange(periods []Period) (ini, fim string, ok bool) {
	var first, last time.Time
	for _, p := range periods {
		if t, err := time.Parse("02012006", p.Ini); err == nil && (first.IsZero() || t.Before(first)) {
			first = t
		}
		if t, err := time.Parse("02012006", p.Fin); err == nil && (last.IsZero() || t.After(last)) {
			last = t
		}
	}
	if first.IsZero() || last.IsZero() {
		return "", "", false
	}
	return first.Format("02-01-2006"), last.Format("02-01-2006"), true
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRows       int
	OutputFile      string
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	Variant     string
	Encoding    string
	Rows        int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummary writes a human readable processing summary to w.
func WriteSummary(w io.Writer, summary ProcessingSummary) error {
	var b strings.Builder

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(&b, "SPED EFD Relatorios - Processing Summary\n"+
		"================================================================================\n"+
		"  Run:          %s\n"+
		"  Duration:     %s\n"+
		"  Total Files:  %d\n"+
		"  Successful:   %d\n"+
		"  Failed:       %d\n"+
		"  Total Rows:   %d\n",
		summary.RunID,
		duration.Round(time.Millisecond),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRows)
	if summary.OutputFile != "" {
		fmt.Fprintf(&b, "  Output:       %s\n", summary.OutputFile)
	}

	if len(summary.ProcessedFiles) > 0 {
		b.WriteString("\nSuccessful Files:\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(&b, "  %s [%s, %s] rows=%d time=%s\n",
				pf.InputFile, pf.Variant, pf.Encoding, pf.Rows, pf.ProcessTime.Round(time.Millisecond))
		}
	}

	if len(summary.FailedFilesList) > 0 {
		b.WriteString("\nFailed Files:\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(&b, "  File:  %s\n  Error: %s\n", ff.InputFile, ff.ErrorMessage)
		}
	}
	b.WriteString("================================================================================\n")

	_, err := io.WriteString(w, b.String())
	return err
}
