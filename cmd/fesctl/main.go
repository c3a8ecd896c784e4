// Command fesctl evaluates, converts and inspects OGC filter documents.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	ogcfilter "github.com/hugr-lab/ogc-filter"
	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/function"
)

const (
	dialectFlag   = "dialect"
	functionsFlag = "functions"
	verboseFlag   = "verbose"
	filterFlag    = "filter"
)

// globalFlags are created per application so repeated runs in one process
// start from clean flag state.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    dialectFlag,
			Aliases: []string{"d"},
			Usage:   "filter document version read by commands (1.0.0 or 1.1.0)",
			Value:   string(filter.Version110),
		},
		&cli.StringFlag{
			Name:    functionsFlag,
			Usage:   "YAML file binding additional function names",
			Sources: cli.EnvVars(function.EnvOverride),
		},
		&cli.BoolFlag{
			Name:    verboseFlag,
			Aliases: []string{"v"},
			Usage:   "log debug output to stderr",
		},
	}
}

func newFilterFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     filterFlag,
		Aliases:  []string{"f"},
		Usage:    "filter document (\"-\" for stdin, .zst accepted)",
		Required: true,
	}
}

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "fesctl",
		Usage:     "Work with OGC filter documents",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			newEvalCommand(),
			newConvertCommand(),
			newSQLCommand(),
			newInspectCommand(),
			newQueryCommand(),
		},
	}
}

// engineFromCommand builds an engine from the global flags.
func engineFromCommand(cmd *cli.Command, strict bool, workers int) (*ogcfilter.Engine, error) {
	config := ogcfilter.Config{
		Version: filter.Version(cmd.String(dialectFlag)),
		Strict:  strict,
		Workers: workers,
		Logger:  loggerFromCommand(cmd),
	}
	if path := cmd.String(functionsFlag); path != "" {
		reg, err := function.Load(path)
		if err != nil {
			return nil, err
		}
		config.Functions = reg
	}
	return ogcfilter.New(config)
}

func loggerFromCommand(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool(verboseFlag) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: level}))
}
