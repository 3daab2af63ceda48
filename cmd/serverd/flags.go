package main

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds the command line options
type Flags struct {
	ConfigFile    string
	Host          string
	Port          int
	MetricsPort   int
	ModelsDir     string
	PinnedVersion string
	LogLevel      string
	LogFormat     string
	Preload       bool
	Version       bool
}

// ParseFlags parses the command line
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigFile, "config", "", "Path to configuration file")
	flag.StringVar(&f.Host, "host", "", "Server host (overrides config)")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.IntVar(&f.MetricsPort, "metrics-port", 0, "Prometheus metrics port (overrides config)")
	flag.StringVar(&f.ModelsDir, "models-dir", "", "Model artifacts directory (overrides config)")
	flag.StringVar(&f.PinnedVersion, "pin-version", "", "Pin every model to one version")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.LogFormat, "log-format", "", "Log format (json, text)")
	flag.BoolVar(&f.Preload, "preload", false, "Preload all known models at startup")
	flag.BoolVar(&f.Version, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nDisease model serving daemon\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if f.Version {
		info := GetBuildInfo()
		fmt.Printf("Version: %s\n", info.Version)
		fmt.Printf("Git Commit: %s\n", info.GitCommit)
		fmt.Printf("Build Date: %s\n", info.BuildDate)
		fmt.Printf("Go Version: %s\n", info.GoVersion)
		fmt.Printf("Platform: %s\n", info.Platform)
		os.Exit(0)
	}

	return f
}
