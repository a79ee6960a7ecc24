// Package config translates CLI flags into component configurations.
package config

import (
	"finance-alignment-engine/internal/aggregator"
	"finance-alignment-engine/internal/engine"
	"finance-alignment-engine/internal/reporter"
	"finance-alignment-engine/pkg/logger"
)

// CreateLoggerConfig builds a logger configuration from the CLI flags.
// Verbose forces debug level with caller info regardless of the level flag.
func CreateLoggerConfig(level string, verbose bool) *logger.Config {
	if verbose {
		return logger.DebugConfig()
	}

	config := logger.DefaultConfig()
	if level != "" {
		config.Level = logger.Level(level)
	}
	return config
}

// CreateEngineConfig builds an engine configuration with CLI overrides.
func CreateEngineConfig(topListSize, pendingQueueSize int) *engine.Config {
	config := engine.DefaultConfig()

	if topListSize > 0 {
		config.Aggregator.TopListSize = topListSize
	}
	if pendingQueueSize > 0 {
		config.Aggregator.PendingQueueSize = pendingQueueSize
	}
	return config
}

// CreateReportConfig builds a report configuration for the requested format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)
	return config
}

// CreateAggregatorConfig exposes the aggregator defaults for tooling that
// runs the aggregation step on its own.
func CreateAggregatorConfig() *aggregator.Config {
	return aggregator.DefaultConfig()
}
