package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"gocombat/domain/expression"
	"gocombat/internal"
	"gocombat/internal/errors"
)

// MissingToken is written for NaN entries in delimited output
const MissingToken = "NA"

// DataWriter writes a matrix in the layout ParseMatrix reads
type DataWriter struct {
	filePath string
	fileType string
	sheet    string
	idHeader string
	logger   *internal.Logger
}

// NewDataWriter creates a writer; the file type is taken from the extension
func NewDataWriter(filePath string, logger *internal.Logger) *DataWriter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataWriter{
		filePath: filePath,
		fileType: fileTypeOf(filePath),
		sheet:    DefaultSheet,
		idHeader: "feature",
		logger:   logger,
	}
}

// WithSheet selects the xlsx worksheet to write
func (w *DataWriter) WithSheet(sheet string) *DataWriter {
	if sheet != "" {
		w.sheet = sheet
	}
	return w
}

// WriteMatrix writes m with a header row of sample ids. NaN is left as an
// empty cell in xlsx and written as MissingToken in delimited files.
func (w *DataWriter) WriteMatrix(m *expression.DataMatrix) error {
	var err error
	switch w.fileType {
	case FileTypeCSV:
		err = w.writeDelimited(m, ',')
	case FileTypeTSV:
		err = w.writeDelimited(m, '\t')
	default:
		err = w.writeExcel(m)
	}
	if err != nil {
		return err
	}
	w.logger.Debug("[DataWriter] wrote %d x %d matrix to %s", m.Rows(), m.Cols(), w.filePath)
	return nil
}

func (w *DataWriter) writeExcel(m *expression.DataMatrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if w.sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, w.sheet); err != nil {
			return errors.IOError("failed to name sheet", err)
		}
	}

	header := make([]interface{}, 0, m.Cols()+1)
	header = append(header, w.idHeader)
	for _, id := range m.ColIDs {
		header = append(header, id)
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		return errors.IOError("failed to write header row", err)
	}

	for i, rowID := range m.RowIDs {
		row := make([]interface{}, 0, m.Cols()+1)
		row = append(row, rowID)
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.IOError("failed to address row", err)
		}
		if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
			return errors.IOError(fmt.Sprintf("failed to write row %s", rowID), err)
		}
	}

	if err := f.SaveAs(w.filePath); err != nil {
		return errors.IOError("failed to save Excel file", err)
	}
	return nil
}

func (w *DataWriter) writeDelimited(m *expression.DataMatrix, comma rune) error {
	file, err := os.Create(w.filePath)
	if err != nil {
		return errors.IOError("failed to create output file", err)
	}
	defer file.Close()

	out := csv.NewWriter(file)
	out.Comma = comma

	record := make([]string, 0, m.Cols()+1)
	record = append(record, w.idHeader)
	record = append(record, m.ColIDs...)
	if err := out.Write(record); err != nil {
		return errors.IOError("failed to write header row", err)
	}
	for i, rowID := range m.RowIDs {
		record = record[:0]
		record = append(record, rowID)
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				record = append(record, MissingToken)
				continue
			}
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := out.Write(record); err != nil {
			return errors.IOError(fmt.Sprintf("failed to write row %s", rowID), err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return errors.IOError("failed to flush output file", err)
	}
	return file.Close()
}
