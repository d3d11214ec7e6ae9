package excel

// DefaultSheet is the worksheet read from and written to when none is set
const DefaultSheet = "Sheet1"

// FileConfig locates the inputs and output of a batch correction run
type FileConfig struct {
	MatrixPath     string `json:"matrix_path"`      // feature x sample table
	SampleInfoPath string `json:"sample_info_path"` // sample x covariate table
	OutputPath     string `json:"output_path"`      // corrected matrix
	Sheet          string `json:"sheet"`            // xlsx worksheet, DefaultSheet when empty
}

// DefaultFileConfig returns a config that reads and writes DefaultSheet
func DefaultFileConfig() FileConfig {
	return FileConfig{Sheet: DefaultSheet}
}

func (c FileConfig) sheet() string {
	if c.Sheet == "" {
		return DefaultSheet
	}
	return c.Sheet
}
