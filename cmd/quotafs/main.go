package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dargueta/quotafs"
	"github.com/dargueta/quotafs/batch"
	"github.com/dargueta/quotafs/config"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Usage: "Run operations against an in-memory file system with a block quota",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load settings from `FILE` (YAML, TOML, or JSON)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Initialize a file system and print its configuration",
				Action: showInfo,
			},
			{
				Name:      "run",
				Usage:     "Execute a CSV script of operations and print the results as CSV",
				Action:    runScript,
				ArgsUsage: "SCRIPT_FILE",
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// openFileSystem creates a file system from the configuration named on the
// command line, logging to stderr.
func openFileSystem(context *cli.Context) (*quotafs.FileSystem, error) {
	cfg, err := config.Load(context.String("config"))
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(cfg.LogLevel)
	if context.IsSet("log-level") {
		level, err := logrus.ParseLevel(context.String("log-level"))
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	options := append(cfg.Options(), quotafs.WithLogger(logger))
	return quotafs.New(options...)
}

func showInfo(context *cli.Context) error {
	fs, err := openFileSystem(context)
	if err != nil {
		return err
	}
	defer fs.Close()

	err = fs.Init()
	if err != nil {
		return err
	}

	stat := fs.Statfs()
	limits := fs.Limits()
	out := context.App.Writer
	fmt.Fprintf(out, "Block size:          %s\n", humanize.IBytes(uint64(stat.BlockSize)))
	fmt.Fprintf(out, "Max file size:       %s\n", humanize.IBytes(uint64(stat.MaxFileSize)))
	fmt.Fprintf(
		out,
		"Block budget:        %s blocks (%s)\n",
		humanize.Comma(int64(stat.TotalBlocks)),
		humanize.IBytes(stat.TotalBlocks*uint64(stat.BlockSize)),
	)
	fmt.Fprintf(out, "Entries per dir:     %d\n", limits.MaxEntriesPerDirectory)
	fmt.Fprintf(out, "Max name length:     %d\n", stat.MaxNameLength)
	fmt.Fprintf(out, "Max path length:     %d\n", limits.MaxPathLength-1)
	fmt.Fprintf(out, "Byte storage:        %t\n", stat.HasBlockStorage)
	return nil
}

func runScript(context *cli.Context) error {
	if context.NArg() != 1 {
		return cli.Exit("expected exactly one script file, or - for stdin", 2)
	}

	var input io.Reader
	path := context.Args().First()
	if path == "-" {
		input = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		input = file
	}

	steps, err := batch.ParseScript(input)
	if err != nil {
		return err
	}

	fs, err := openFileSystem(context)
	if err != nil {
		return err
	}
	defer fs.Close()

	results, runErr := batch.Run(fs, steps)
	err = batch.WriteResults(results, context.App.Writer)
	if err != nil {
		return err
	}

	if merr, ok := runErr.(*multierror.Error); ok {
		return cli.Exit(fmt.Sprintf("%d of %d steps failed", len(merr.Errors), len(steps)), 1)
	}
	return runErr
}
