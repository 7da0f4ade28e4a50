package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	CompanyID   int64
	MappingPath string // default "configs/mapping/equipment.yaml"
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// MappingConfig represents the YAML mapping configuration. Each sheet maps
// to one equipment category; the sheet's columns feed equipment_items.
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	Category   string                  `yaml:"category"`
	NaturalKey []string                `yaml:"natural_key"`
	Aliases    map[string][]string     `yaml:"aliases"`
	Columns    map[string]ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

// ImportExcel processes an Excel workbook and imports equipment items.
// Each mapped sheet is matched against an equipment category by name;
// categories are created on demand.
func ImportExcel(ctx context.Context, db *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	// Set defaults
	if opts.MappingPath == "" {
		opts.MappingPath = "configs/mapping/equipment.yaml"
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}
	if opts.CompanyID <= 0 {
		return summary, errors.New("company id is required")
	}

	// Load mapping configuration
	mapping, err := loadMappingConfig(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs an io.ReaderAt, so buffer the upload first
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}

	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	// Set company context for RLS
	conn, err := db.Acquire(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "SET app.current_company_id = $1", opts.CompanyID)
	if err != nil {
		return summary, fmt.Errorf("failed to set company context: %w", err)
	}

	// Process each sheet
	for _, sheet := range xlFile.Sheets {
		sheetConfig, exists := mapping.Sheets[sheet.Name]
		if !exists {
			continue // Skip sheets without mapping
		}

		sheetSummary := processSheet(ctx, conn, sheet, sheetConfig, opts)
		summary.Sheets = append(summary.Sheets, sheetSummary)

		// Accumulate totals
		summary.Inserted += sheetSummary.Inserted
		summary.Updated += sheetSummary.Updated
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		// Stop if too many errors
		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}

	return summary, nil
}

func loadMappingConfig(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultMappingConfig(), nil
		}
		return nil, err
	}

	var cfg MappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Sheets) == 0 {
		return nil, errors.New("mapping config defines no sheets")
	}
	return &cfg, nil
}

// defaultMappingConfig matches the workbook layout most customers export
// from their existing plant registers.
func defaultMappingConfig() *MappingConfig {
	return &MappingConfig{
		Version: 1,
		Sheets: map[string]SheetConfig{
			"Equipment": {
				Category:   "Plant",
				NaturalKey: []string{"serial_number", "name"},
				Aliases: map[string][]string{
					"SerialNumber": {"Serial Number", "Serial", "S/N"},
					"PlantNumber":  {"Plant Number", "Plant No", "Fleet Number"},
				},
				Columns: map[string]ColumnConfig{
					"Name":         {Field: "name", Type: "TEXT"},
					"SerialNumber": {Field: "serial_number", Type: "TEXT?"},
					"PlantNumber":  {Field: "plant_number", Type: "TEXT?"},
					"Make":         {Field: "make", Type: "TEXT?"},
					"Model":        {Field: "model", Type: "TEXT?"},
					"Notes":        {Field: "notes", Type: "TEXT?"},
				},
			},
		},
	}
}

func processSheet(ctx context.Context, conn *pgxpool.Conn, sheet *xlsx.Sheet, config SheetConfig, opts ImportOptions) SheetSummary {
	summary := SheetSummary{Name: sheet.Name}

	categoryID, err := ensureCategory(ctx, conn, config.Category, opts)
	if err != nil {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     0,
			Message: "Failed to resolve category: " + err.Error(),
		})
		return summary
	}

	// Get header row (first row)
	headerRow, err := sheet.Row(0)
	if err != nil {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     1,
			Message: "Failed to read header row: " + err.Error(),
		})
		return summary
	}

	// Map spreadsheet headers to mapping keys, honoring aliases
	columnForHeader := map[int]string{}
	colIdx := 0
	for {
		cell := headerRow.GetCell(colIdx)
		if cell == nil {
			break
		}
		headerName := strings.TrimSpace(cell.String())
		if headerName == "" {
			colIdx++
			continue
		}
		if key := resolveHeader(headerName, config); key != "" {
			columnForHeader[colIdx] = key
		}
		colIdx++
	}

	// Process data rows starting from row 1
	rowIdx := 1
	for {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break // No more rows
		}

		// Extract mapped values from the row
		rowData := make(map[string]string)
		colIdx := 0
		for {
			cell := row.GetCell(colIdx)
			if cell == nil {
				break
			}
			if key, ok := columnForHeader[colIdx]; ok {
				if v := strings.TrimSpace(cell.String()); v != "" {
					rowData[key] = v
				}
			}
			colIdx++
		}

		// Skip if no data in row
		if len(rowData) == 0 {
			summary.Skipped++
			rowIdx++
			continue
		}

		itemData, err := buildItemData(rowData, config)
		if err != nil {
			summary.Errors++
			summary.Samples = append(summary.Samples, RowError{
				Sheet:   sheet.Name,
				Row:     rowIdx + 1,
				Message: err.Error(),
			})
			rowIdx++
			continue
		}

		existingID, err := findExistingItem(ctx, conn, itemData, config.NaturalKey, opts.CompanyID, categoryID)
		if err != nil {
			summary.Errors++
			summary.Samples = append(summary.Samples, RowError{
				Sheet:   sheet.Name,
				Row:     rowIdx + 1,
				Message: err.Error(),
			})
			rowIdx++
			continue
		}

		if existingID > 0 {
			if !opts.DryRun {
				if err := updateItem(ctx, conn, existingID, itemData); err != nil {
					summary.Errors++
					summary.Samples = append(summary.Samples, RowError{
						Sheet:   sheet.Name,
						Row:     rowIdx + 1,
						Message: err.Error(),
					})
					rowIdx++
					continue
				}
			}
			summary.Updated++
		} else {
			if !opts.DryRun {
				if err := insertItem(ctx, conn, itemData, opts.CompanyID, categoryID); err != nil {
					summary.Errors++
					summary.Samples = append(summary.Samples, RowError{
						Sheet:   sheet.Name,
						Row:     rowIdx + 1,
						Message: err.Error(),
					})
					rowIdx++
					continue
				}
			}
			summary.Inserted++
		}

		rowIdx++
	}

	return summary
}

// resolveHeader matches a spreadsheet header against the mapping keys and
// their aliases. Matching is case-insensitive.
func resolveHeader(headerName string, config SheetConfig) string {
	for key := range config.Columns {
		if strings.EqualFold(key, headerName) {
			return key
		}
	}
	for key, aliases := range config.Aliases {
		for _, alias := range aliases {
			if strings.EqualFold(alias, headerName) {
				if _, ok := config.Columns[key]; ok {
					return key
				}
			}
		}
	}
	return ""
}

// ensureCategory resolves the sheet's category to an id, creating it when
// the company has no category by that name yet.
func ensureCategory(ctx context.Context, conn *pgxpool.Conn, name string, opts ImportOptions) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("sheet mapping has no category name")
	}

	var id int64
	err := conn.QueryRow(ctx, `
		SELECT id FROM equipment_categories WHERE company_id = $1 AND name = $2`,
		opts.CompanyID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	if opts.DryRun {
		// Dry runs must not create categories; report against id 0
		return 0, nil
	}

	err = conn.QueryRow(ctx, `
		INSERT INTO equipment_categories (company_id, name) VALUES ($1, $2) RETURNING id`,
		opts.CompanyID, name).Scan(&id)
	return id, err
}

func buildItemData(rowData map[string]string, config SheetConfig) (map[string]interface{}, error) {
	itemData := make(map[string]interface{})

	for key, columnConfig := range config.Columns {
		value, exists := rowData[key]
		if !exists || value == "" {
			continue
		}

		parsedValue, err := parseValue(value, columnConfig.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", key, err)
		}
		itemData[columnConfig.Field] = parsedValue
	}

	if _, ok := itemData["name"]; !ok {
		return nil, errors.New("row has no name")
	}

	return itemData, nil
}

func parseValue(value, valueType string) (interface{}, error) {
	valueType = strings.TrimSuffix(valueType, "?") // Remove optional marker

	switch valueType {
	case "TEXT", "string":
		return value, nil
	case "INT", "int":
		return strconv.Atoi(value)
	case "BOOL", "bool":
		value = strings.ToLower(value)
		return value == "yes" || value == "y" || value == "true" || value == "1", nil
	case "DATE", "date", "TIMESTAMP", "timestamp":
		// Try common date formats
		formats := []string{
			"2006-01-02",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"02/01/2006 15:04:05",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, value); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid date format: %s", value)
	default:
		return value, nil
	}
}

func findExistingItem(ctx context.Context, conn *pgxpool.Conn, itemData map[string]interface{}, naturalKey []string, companyID, categoryID int64) (int64, error) {
	if categoryID == 0 {
		// Dry run against a category that does not exist yet
		return 0, nil
	}

	for _, key := range naturalKey {
		value, exists := itemData[key]
		if !exists || value == nil {
			continue
		}

		var query string
		switch key {
		case "serial_number":
			query = "SELECT id FROM equipment_items WHERE company_id = $1 AND category_id = $2 AND serial_number = $3"
		case "plant_number":
			query = "SELECT id FROM equipment_items WHERE company_id = $1 AND category_id = $2 AND plant_number = $3"
		case "name":
			query = "SELECT id FROM equipment_items WHERE company_id = $1 AND category_id = $2 AND name = $3"
		default:
			continue
		}

		var id int64
		err := conn.QueryRow(ctx, query, companyID, categoryID, value).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
	}

	return 0, nil // Not found
}

func insertItem(ctx context.Context, conn *pgxpool.Conn, itemData map[string]interface{}, companyID, categoryID int64) error {
	fields := []string{"company_id", "category_id"}
	values := []interface{}{companyID, categoryID}
	placeholders := []string{"$1", "$2"}
	argIndex := 3

	for field, value := range itemData {
		if !isItemField(field) {
			continue
		}
		fields = append(fields, field)
		values = append(values, value)
		placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
		argIndex++
	}

	query := fmt.Sprintf(`
		INSERT INTO equipment_items (%s)
		VALUES (%s)
	`, strings.Join(fields, ", "), strings.Join(placeholders, ", "))

	_, err := conn.Exec(ctx, query, values...)
	return err
}

func updateItem(ctx context.Context, conn *pgxpool.Conn, itemID int64, itemData map[string]interface{}) error {
	setParts := []string{}
	values := []interface{}{}
	argIndex := 1

	for field, value := range itemData {
		if !isItemField(field) {
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argIndex))
		values = append(values, value)
		argIndex++
	}

	if len(setParts) == 0 {
		return nil
	}

	setParts = append(setParts, "updated_at = now()")
	query := fmt.Sprintf(`
		UPDATE equipment_items SET %s
		WHERE id = $%d
	`, strings.Join(setParts, ", "), argIndex)
	values = append(values, itemID)

	_, err := conn.Exec(ctx, query, values...)
	return err
}

func isItemField(field string) bool {
	itemFields := map[string]bool{
		"name":          true,
		"serial_number": true,
		"plant_number":  true,
		"make":          true,
		"model":         true,
		"notes":         true,
	}
	return itemFields[field]
}
