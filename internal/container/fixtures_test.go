package container

import (
	"encoding/csv"
	"os"

	"gocombat/internal/testkit"
)

func writeSampleTable(path string, ds *testkit.SyntheticDataset) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"sample"}
	for _, c := range ds.Info.Columns {
		header = append(header, c.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, id := range ds.Info.SampleIDs {
		record := []string{id}
		for _, c := range ds.Info.Columns {
			record = append(record, c.Levels[i])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
