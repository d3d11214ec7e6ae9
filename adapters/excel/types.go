package excel

// RawTable is a sheet as trimmed strings: a header row followed by data rows.
// Rows may be shorter than Headers when trailing cells are empty.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Cell returns row i, column j, or "" past the end of a short row
func (t *RawTable) Cell(i, j int) string {
	row := t.Rows[i]
	if j >= len(row) {
		return ""
	}
	return row[j]
}
