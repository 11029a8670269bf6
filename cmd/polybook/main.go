package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"polybook/internal/config"
	"polybook/internal/logx"
)

func main() {
	if err := newApp(config.FromEnv()).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "polybook:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg config.Config
	log zerolog.Logger
}

func newApp(cfg config.Config) *cli.App {
	e := &env{cfg: cfg, log: zerolog.Nop()}
	return &cli.App{
		Name:  "polybook",
		Usage: "inspect, build, merge and prune Polyglot opening books",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: cfg.LogLevel,
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "sqlite archive used by export-db, import-db, books and prune defaults",
				Value: cfg.DBPath,
			},
		},
		Before: func(c *cli.Context) error {
			e.log = logx.NewLogger(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			e.infoCommand(),
			e.dumpCommand(),
			e.lookupCommand(),
			e.addCommand(),
			e.mergeCommand(),
			e.pruneCommand(),
			e.exportDBCommand(),
			e.importDBCommand(),
			e.booksCommand(),
		},
	}
}
