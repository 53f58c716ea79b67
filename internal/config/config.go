// =============================================================================
// SPED EFD Relatorios - Configuration Module
// =============================================================================
//
// This module loads the application configuration from a single YAML file.
// Every option has a default, so a missing file is not an error for the CLI:
// it falls back to DefaultMainConfig.
//
// CONFIGURATION FILE (config.yaml):
//   - Directories and the input file extension
//   - Encoding override and log level
//   - Output naming, worker sizing and sheet splitting
//   - Optional layout workbook, SQLite sink and column rules
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultOutputNameFormat = "Info do Contribuinte - SPED EFD - {ini} a {fim}.xlsx"
	DefaultSheetRowLimit    = 500000
	DefaultReserveCPUs      = 2

	// maxSheetRows is the row capacity of an XLSX sheet, header included.
	maxSheetRows = 1048576
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for SPED EFD files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated workbook.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// Extension selects the files of InputDir to process.
	// Default: ".txt"
	Extension string `yaml:"extension"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// Encoding forces the character encoding of every input file.
	// Valid values: "", "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "" (detected per file)
	Encoding string `yaml:"encoding"`

	// LayoutWorkbook is an optional XLSX file overriding the embedded
	// register layouts (columns REG, NIVEL, CAMPOS).
	LayoutWorkbook string `yaml:"layout_workbook"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the workbook file name.
	// Placeholders:
	//   {ini}       - Earliest DT_INI of the processed files (dd-mm-aaaa)
	//   {fim}       - Latest DT_FIN of the processed files (dd-mm-aaaa)
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//
	// Default: "Info do Contribuinte - SPED EFD - {ini} a {fim}.xlsx"
	OutputNameFormat string `yaml:"output_name_format"`

	// SheetRowLimit is the number of data rows per item sheet before a
	// continuation sheet is started.
	// Default: 500000
	SheetRowLimit int `yaml:"sheet_row_limit"`

	// SQLitePath enables the SQLite sink when set.
	SQLitePath string `yaml:"sqlite_path"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// ReserveCPUs is the number of CPUs left free when sizing the pool.
	// Default: 2
	ReserveCPUs *int `yaml:"reserve_cpus"`

	// MaxWorkers caps the pool size. Zero means no cap.
	// Default: 0
	MaxWorkers int `yaml:"max_workers"`

	// =========================================================================
	// COLUMN RULES
	// =========================================================================

	// ColumnRules are applied to the merged rows before export.
	//
	// CUSTOMIZATION: Add rules for any output column.
	// Example:
	//   column_rules:
	//     - column: "NOME"
	//       actions:
	//         - type: "uppercase"
	ColumnRules []ColumnRule `yaml:"column_rules"`
}

// Reserve returns the configured CPU reserve.
func (c *MainConfig) Reserve() int {
	if c.ReserveCPUs == nil {
		return DefaultReserveCPUs
	}
	return *c.ReserveCPUs
}

// =============================================================================
// COLUMN RULE STRUCTURE
// =============================================================================

// ColumnRule defines the actions applied to one output column.
type ColumnRule struct {
	// Column is the output column name, e.g. "NOME" or "COD_ITEM".
	Column string `yaml:"column"`

	// Actions are applied in order.
	Actions []RuleAction `yaml:"actions"`
}

// RuleAction defines a single column action.
type RuleAction struct {
	// Type is one of SupportedActions:
	//   - "uppercase"           : Convert to uppercase
	//   - "lowercase"           : Convert to lowercase
	//   - "trim"                : Remove leading and trailing whitespace
	//   - "prepend_string"      : Add Value to the beginning
	//   - "append_string"       : Add Value to the end
	//   - "pad_zeros_to_length" : Pad with leading zeros to length Value
	//   - "replace"             : Replace Find with Value
	//   - "regex_replace"       : Replace the pattern Find with Value
	//   - "lookup"              : Replace using LookupTable
	Type string `yaml:"type"`

	// Value is the parameter of the action.
	Value string `yaml:"value"`

	// Find is the substring or pattern of "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// SupportedActions lists the valid RuleAction types.
var SupportedActions = []string{
	"uppercase", "lowercase", "trim", "prepend_string", "append_string",
	"pad_zeros_to_length", "replace", "regex_replace", "lookup",
}

var (
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validEncodings = map[string]bool{"": true, "UTF-8": true, "ISO-8859-1": true, "WINDOWS-1252": true}
)

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct, with defaults applied.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseMainConfig(data)
}

// ParseMainConfig parses, completes and validates a YAML document.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// DefaultMainConfig returns the configuration used when no file exists.
func DefaultMainConfig() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.Extension == "" {
		config.Extension = ".txt"
	}
	if !strings.HasPrefix(config.Extension, ".") {
		config.Extension = "." + config.Extension
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = DefaultOutputNameFormat
	}
	if config.SheetRowLimit == 0 {
		config.SheetRowLimit = DefaultSheetRowLimit
	}
	if config.ReserveCPUs == nil {
		reserve := DefaultReserveCPUs
		config.ReserveCPUs = &reserve
	}
	config.Encoding = strings.ToUpper(strings.TrimSpace(config.Encoding))
	config.LogLevel = strings.ToLower(config.LogLevel)
}

// validateMainConfig validates the main configuration. All problems are
// reported together.
func validateMainConfig(config *MainConfig) error {
	var errs []error

	if !validLogLevels[config.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel))
	}
	if !validEncodings[config.Encoding] {
		errs = append(errs, fmt.Errorf("encoding %q is not supported", config.Encoding))
	}
	if config.SheetRowLimit < 1 || config.SheetRowLimit > maxSheetRows-1 {
		errs = append(errs, fmt.Errorf("sheet_row_limit %d must be between 1 and %d", config.SheetRowLimit, maxSheetRows-1))
	}
	if config.Reserve() < 0 {
		errs = append(errs, fmt.Errorf("reserve_cpus %d must not be negative", config.Reserve()))
	}
	if config.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("max_workers %d must not be negative", config.MaxWorkers))
	}
	for i, rule := range config.ColumnRules {
		if err := validateColumnRule(rule); err != nil {
			errs = append(errs, fmt.Errorf("column_rules[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateColumnRule(rule ColumnRule) error {
	if rule.Column == "" {
		return errors.New("column is required")
	}
	for _, action := range rule.Actions {
		switch action.Type {
		case "uppercase", "lowercase", "trim", "prepend_string", "append_string", "replace":
		case "pad_zeros_to_length":
			if n, err := strconv.Atoi(action.Value); err != nil || n <= 0 {
				return fmt.Errorf("%s: pad_zeros_to_length needs a positive length, got %q", rule.Column, action.Value)
			}
		case "regex_replace":
			if _, err := regexp.Compile(action.Find); err != nil {
				return fmt.Errorf("%s: invalid regex pattern: %w", rule.Column, err)
			}
		case "lookup":
			if len(action.LookupTable) == 0 {
				return fmt.Errorf("%s: lookup needs a lookup_table", rule.Column)
			}
		default:
			return fmt.Errorf("%s: unknown action type %q (supported: %s)",
				rule.Column, action.Type, strings.Join(SupportedActions, ", "))
		}
	}
	return nil
}

// EnsureOutputDir creates the output directory if it does not exist.
func (c *MainConfig) EnsureOutputDir() error {
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.OutputDir, err)
	}
	return nil
}
