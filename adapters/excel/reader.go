package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gocombat/internal"
	"gocombat/internal/errors"
)

// File types understood by DataReader and DataWriter
const (
	FileTypeXLSX = "xlsx"
	FileTypeCSV  = "csv"
	FileTypeTSV  = "tsv"
)

// DataReader handles reading Excel, CSV and TSV files
type DataReader struct {
	filePath string
	fileType string
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a reader; the file type is taken from the extension
// (.csv, .tsv/.txt, anything else is read as xlsx)
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileTypeOf(filePath),
		sheet:    DefaultSheet,
		logger:   logger,
	}
}

// WithSheet selects the xlsx worksheet to read
func (r *DataReader) WithSheet(sheet string) *DataReader {
	if sheet != "" {
		r.sheet = sheet
	}
	return r
}

func fileTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FileTypeCSV
	case ".tsv", ".txt":
		return FileTypeTSV
	default:
		return FileTypeXLSX
	}
}

// ReadTable reads the whole sheet into a RawTable
func (r *DataReader) ReadTable() (*RawTable, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); err != nil {
		return nil, errors.IOError(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath), err)
	}

	var (
		rows [][]string
		err  error
	)
	readStart := time.Now()
	switch r.fileType {
	case FileTypeCSV:
		rows, err = r.readDelimited(',')
	case FileTypeTSV:
		rows, err = r.readDelimited('\t')
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)", r.filePath, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return processRows(rows, r.filePath)
}

// readExcel reads raw cell values so numbers keep their full precision
func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.IOError("failed to open Excel file", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to read sheet %s", r.sheet), err)
	}
	return rows, nil
}

func (r *DataReader) readDelimited(comma rune) ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.IOError("failed to open delimited file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.IOError("failed to parse delimited file", err)
	}
	return rows, nil
}

// processRows trims every cell and drops blank rows
func processRows(rows [][]string, source string) (*RawTable, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput(fmt.Sprintf("%s must have a header row and at least one data row", source))
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	table := &RawTable{Headers: headers}
	for _, row := range rows[1:] {
		cells := make([]string, len(row))
		blank := true
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell)
			if cells[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	if len(table.Rows) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("%s has no data rows", source))
	}
	return table, nil
}
