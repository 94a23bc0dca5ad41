package main

import "github.com/urfave/cli/v2"

const envPrefix = "PARITYNODE"

var (
	DirectoryHostFlag = &cli.StringFlag{
		Name:     "directory-host",
		Usage:    "Host of the directory service to register with",
		EnvVars:  prefixEnvVars("DIRECTORY_HOST"),
		Required: true,
	}
	DirectoryPortFlag = &cli.IntFlag{
		Name:     "directory-port",
		Usage:    "Port of the directory service to register with",
		EnvVars:  prefixEnvVars("DIRECTORY_PORT"),
		Required: true,
	}
	NodePortFlag = &cli.IntFlag{
		Name:    "node-port",
		Usage:   "Port to listen on for peer connections; 0 assigns any free port",
		EnvVars: prefixEnvVars("NODE_PORT"),
		Value:   0,
	}
	DataFileFlag = &cli.StringFlag{
		Name:    "data-file",
		Usage:   "Path to a pre-seeded 1,000,000 byte payload; when set, bootstrap is skipped",
		EnvVars: prefixEnvVars("DATA_FILE"),
	}
	BlockSizeFlag = &cli.IntFlag{
		Name:    "block-size",
		Usage:   "Bootstrap request granularity, in bytes",
		EnvVars: prefixEnvVars("BLOCK_SIZE"),
		Value:   10_000,
	}
	ScannersFlag = &cli.IntFlag{
		Name:    "scanners",
		Usage:   "Number of independent correction-loop scanners to run",
		EnvVars: prefixEnvVars("SCANNERS"),
		Value:   2,
	}
	CorrectorRateFlag = &cli.Float64Flag{
		Name:    "corrector-rate",
		Usage:   "Max correction rounds per second the corrector issues against peers; 0 disables throttling",
		EnvVars: prefixEnvVars("CORRECTOR_RATE"),
		Value:   0,
	}
	CorrectorBurstFlag = &cli.IntFlag{
		Name:    "corrector-burst",
		Usage:   "Token bucket burst size for corrector-rate",
		EnvVars: prefixEnvVars("CORRECTOR_BURST"),
		Value:   1,
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: trace, debug, info, warn, error, crit",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Value:   "info",
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "Address to serve Prometheus metrics on",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
		Value:   "127.0.0.1:7310",
	}
)

var Flags = []cli.Flag{
	DirectoryHostFlag,
	DirectoryPortFlag,
	NodePortFlag,
	DataFileFlag,
	BlockSizeFlag,
	ScannersFlag,
	CorrectorRateFlag,
	CorrectorBurstFlag,
	LogLevelFlag,
	MetricsAddrFlag,
}

func prefixEnvVars(name string) []string {
	return []string{envPrefix + "_" + name}
}
