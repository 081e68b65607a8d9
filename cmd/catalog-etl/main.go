// Command catalog-etl downloads the product catalog feed and loads it into
// the six catalog tables.
//
// Usage:
//
//	catalog-etl run [--migrate] [--dry-run]   load the feed once and exit
//	catalog-etl serve [--migrate]             serve the run API
//	catalog-etl migrate                       create the catalog tables
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/catalog-etl/internal/config"
	"github.com/JonMunkholm/catalog-etl/internal/logging"
)

type globalOptions struct {
	Config  string `short:"c" long:"config" env:"CATALOG_ETL_CONFIG" description:"YAML configuration file"`
	EnvFile string `long:"env-file" default:".env" description:"dotenv file loaded before configuration (optional)"`
}

// app holds state shared by every command, set up before a command runs.
type app struct {
	opts   globalOptions
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := &app{}
	parser := newParser(a)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, flagsErr.Message)
				return 0
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			return 2
		}
		// Command failures are logged where they happen.
		return 1
	}
	return 0
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			slog.Error("failed to load configuration", "error", err)
			return err
		}
		return cmd.Execute(args)
	}

	mustAdd(parser.AddCommand("run", "Load the feed once",
		"Download, decompress and stream the feed into the catalog tables, then exit.", &runCommand{app: a}))
	mustAdd(parser.AddCommand("serve", "Serve the run API",
		"Start the HTTP API that triggers and reports catalog loads.", &serveCommand{app: a}))
	mustAdd(parser.AddCommand("migrate", "Create the catalog tables",
		"Apply the embedded schema migrations to the configured database.", &migrateCommand{app: a}))
	return parser
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

// setup loads .env, the configuration and the logger.
func (a *app) setup() error {
	// Overload lets .env win over the inherited environment.
	if err := godotenv.Overload(a.opts.EnvFile); err == nil {
		slog.Debug("loaded env file", "path", a.opts.EnvFile)
	}

	cfg, err := config.LoadFile(a.opts.Config)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.logger.Debug("configuration loaded", "config", cfg.String())
	return nil
}
