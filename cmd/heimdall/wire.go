package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/config"
	"github.com/theredcat/heimdall/internal/service"
)

func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// engineOptions translates configuration into engine options
func engineOptions(cfg *config.Config, store service.SnapshotStore) []service.Option {
	opts := []service.Option{
		service.WithDisplayOptions(cfg.Display.Options()),
	}
	if store != nil {
		opts = append(opts, service.WithSnapshotStore(store))
	}
	if cfg.Poll.RetainOnFailure {
		opts = append(opts, service.WithRetainOnFailure())
	}
	return opts
}

// addSources registers every enabled source with the engine
func addSources(engine *service.Engine, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Docker.Enabled {
		docker, err := adapter.NewDockerSource(adapter.DockerConfig{
			Host:            cfg.Docker.Host,
			CacheTTL:        cfg.Docker.CacheTTL.Duration(),
			FetchTimeout:    cfg.Docker.FetchTimeout.Duration(),
			LinkByEnv:       cfg.Docker.LinkByEnv,
			LinkLabelPrefix: cfg.Docker.LinkLabelPrefix,
		}, engine.Networks(), logger)
		if err != nil {
			return fmt.Errorf("docker source: %w", err)
		}
		if err := engine.AddSource(docker); err != nil {
			docker.Close()
			return err
		}
	}

	if cfg.Nmap.Enabled {
		opts := []adapter.NmapOption{
			adapter.WithInterval(cfg.Nmap.Interval.Duration()),
			adapter.WithTimeout(cfg.Nmap.Timeout.Duration()),
			adapter.WithServiceDetection(cfg.Nmap.ServiceDetection),
			adapter.WithOSDetection(cfg.Nmap.OSDetection),
			adapter.WithSkipHostDiscovery(cfg.Nmap.SkipHostDiscovery),
		}
		if cfg.Nmap.Ports != "" {
			opts = append(opts, adapter.WithPortRange(cfg.Nmap.Ports))
		}
		scanner, err := adapter.NewNmapSource(cfg.Nmap.Targets, logger, opts...)
		if err != nil {
			return fmt.Errorf("nmap source: %w", err)
		}
		if err := engine.AddSource(scanner); err != nil {
			return err
		}
	}
	return nil
}
