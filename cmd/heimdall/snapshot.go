package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theredcat/heimdall/internal/codec"
	"github.com/theredcat/heimdall/internal/logging"
	"github.com/theredcat/heimdall/internal/service"
)

const snapshotTimeout = 5 * time.Minute

var snapshotFormat string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one discovery cycle and print the topology",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshot(cmd.Context(), cmd.OutOrStdout(), snapshotFormat)
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "json",
		"export format ("+strings.Join(codec.Formats(), ", ")+")")
}

func runSnapshot(ctx context.Context, out io.Writer, format string) error {
	if _, err := codec.ForFormat(format); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(logging.Config{
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		Component: "heimdall",
	})

	engine := service.NewEngine(logger, engineOptions(cfg, nil)...)
	defer engine.Close()
	if err := addSources(engine, cfg, logger); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	if _, err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return engine.Export(format, out)
}
