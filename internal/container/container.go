package container

import (
	"context"
	"fmt"

	"gocombat/adapters/excel"
	"gocombat/app"
	"gocombat/internal"
	"gocombat/internal/combat"
	"gocombat/internal/config"
	"gocombat/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Engine and the service built on it
	Engine  *combat.Engine
	Service *app.BatchCorrectionService

	// File adapters; nil until InitWithFiles
	Source ports.ExpressionSourcePort
	Sink   ports.ExpressionSinkPort
}

// New creates a container wired from cfg
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	engine := combat.NewEngine(combat.OptionsFromConfig(cfg.Combat, logger))

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Service: app.NewBatchCorrectionService(engine, logger).WithDataScale(cfg.Combat.DataScale),
	}
	logger.Debug("container initialized: method=%s workers=%d scale=%s",
		cfg.Combat.Method, cfg.Combat.Workers, cfg.Combat.DataScale)
	return c, nil
}

// InitWithFiles attaches file based source and sink adapters
func (c *Container) InitWithFiles(files excel.FileConfig) error {
	if files.MatrixPath == "" || files.SampleInfoPath == "" {
		return fmt.Errorf("matrix and sample info paths are required")
	}
	if files.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	c.Source = excel.NewFileSource(files, c.Logger)
	c.Sink = excel.NewFileSink(files, c.Logger)
	return nil
}

// Run corrects the configured input files and writes the output file
func (c *Container) Run(ctx context.Context, outliers []string) (*app.CorrectionResult, error) {
	if c.Source == nil || c.Sink == nil {
		return nil, fmt.Errorf("file adapters not initialized")
	}
	return c.Service.CorrectFromSource(ctx, c.Source, c.Sink, app.CorrectionRequest{OutlierSamples: outliers})
}
