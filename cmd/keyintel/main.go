// Command keyintel looks up key-programming reference data for BMW,
// Mercedes-Benz, Audi and Volkswagen vehicles, decodes VINs, manages
// reference photos and serves the same lookups over HTTP.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/keyintel/engine/imagestore"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/pkg/config"
)

// app is the state shared by every subcommand once the root pre-run hook has
// loaded the configuration and the key database.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *keydb.Database
	res     *resolver.Resolver
	images  *imagestore.Dir
	stdout  io.Writer
	stderr  io.Writer
	jsonOut bool
	cfgPath string
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		newPrinter(stderr, false).errorf("Error: %v", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "keyintel",
		Short:         "Key programming reference for BMW, Mercedes-Benz, Audi and VW",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default ./keyintel.yaml if present)")
	pf.String("data-dir", config.Default().DataDir, "directory holding the manufacturer JSON files")
	pf.String("images-dir", config.Default().ImagesDir, "directory holding reference photos")
	pf.String("log-level", config.Default().LogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", config.Default().LogFormat, "log format: auto, text, json")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newLookupCmd(a),
		newModelsCmd(a),
		newVINCmd(a),
		newStatsCmd(a),
		newCheckCmd(a),
		newImageCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

// init loads configuration, sets up logging and loads the key database.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	format := cfg.LogFormat
	if format == "auto" {
		format = "text"
		if cmd.Name() == "serve" {
			format = "json"
		}
	}
	level, _ := cfg.Level()
	a.log = newLogger(a.logWriter(cmd), format, level)

	a.db = keydb.Load(cfg.DataDir, a.log)
	a.res = resolver.New(a.db)
	a.images = imagestore.NewDir(cfg.ImagesDir, a.log)
	return nil
}

// logWriter keeps interactive output clean: the server logs to stdout like
// any service, everything else logs to stderr.
func (a *app) logWriter(cmd *cobra.Command) io.Writer {
	if cmd.Name() == "serve" {
		return a.stdout
	}
	return a.stderr
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
