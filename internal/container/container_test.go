package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocombat/adapters/excel"
	"gocombat/internal/config"
	"gocombat/internal/testkit"
)

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestContainer_RunFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "ERROR"
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.Run(context.Background(), nil)
	assert.Error(t, err, "adapters not initialized")

	dir := t.TempDir()
	ds := testkit.GenerateBatchEffectData(testkit.DefaultBatchConfig())
	files := excel.DefaultFileConfig()
	files.MatrixPath = filepath.Join(dir, "matrix.csv")
	files.SampleInfoPath = filepath.Join(dir, "samples.csv")
	files.OutputPath = filepath.Join(dir, "corrected.xlsx")

	require.NoError(t, excel.NewDataWriter(files.MatrixPath, c.Logger).WriteMatrix(ds.Data))
	require.NoError(t, writeSampleTable(files.SampleInfoPath, ds))
	require.NoError(t, c.InitWithFiles(files))

	result, err := c.Run(context.Background(), []string{"S002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"S002"}, result.ExcludedOutliers)

	table, err := excel.NewDataReader(files.OutputPath, c.Logger).ReadTable()
	require.NoError(t, err)
	written, err := excel.ParseMatrix(table)
	require.NoError(t, err)
	assert.Equal(t, ds.Data.ColIDs, written.ColIDs)
	assert.Equal(t, ds.Data.Rows(), written.Rows())
}

func TestInitWithFiles_MissingPaths(t *testing.T) {
	c, err := New(config.Default())
	require.NoError(t, err)
	assert.Error(t, c.InitWithFiles(excel.FileConfig{MatrixPath: "m.csv"}))
	assert.Error(t, c.InitWithFiles(excel.FileConfig{MatrixPath: "m.csv", SampleInfoPath: "s.csv"}))
}
