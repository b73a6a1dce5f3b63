// Command co2train trains the CO2 emission regressors on a CSV dataset and
// writes diagnostics, results, figures and the fitted stacking pipeline.
//
// Usage:
//
//	co2train --data_path data/emissions.csv [--target emisi_CO2e] [--output_dir outputs] [--model_dir models]
//
// Exit status is 0 on success, 1 when the run fails and 2 on invalid flags.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/YuminosukeSato/co2stack/training"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// parseFlags fills a Config from args. Flags accept both -name and --name.
func parseFlags(args []string, stderr io.Writer) (training.Config, error) {
	cfg := training.DefaultConfig()
	fs := flag.NewFlagSet("co2train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DataPath, "data_path", "", "path to the training CSV (required)")
	fs.StringVar(&cfg.Target, "target", cfg.Target, "target column")
	fs.StringVar(&cfg.OutputDir, "output_dir", cfg.OutputDir, "directory for JSON results and figures")
	fs.StringVar(&cfg.ModelDir, "model_dir", cfg.ModelDir, "existing directory for the fitted model")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return cfg, flag.ErrHelp
	}
	if cfg.DataPath == "" {
		fmt.Fprintln(stderr, "the following arguments are required: --data_path")
		fs.Usage()
		return cfg, flag.ErrHelp
	}
	return cfg, nil
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	log.SetupLogger("info")
	logger := log.GetLoggerWithName("co2train")
	if _, err := training.Run(cfg); err != nil {
		logger.Error("training failed", err, log.PathKey, cfg.DataPath)
		return exitError
	}
	return exitOK
}
