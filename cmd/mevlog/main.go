// Command mevlog inspects, filters, and re-executes EVM transactions across
// chains: the CLI surface of §6, wiring config/rpcsource/enrich/filter/
// forkstate/tracerpc into internal/scheduler.Scheduler for each of the
// search/tx/watch/chains/chain-info/update-db subcommands.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mevlog-go/mevlog/internal/config"
)

func main() {
	level := parseLevel(config.LogLevel())
	if config.Quiet() {
		level = log.LevelError
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, level, false)
	log.SetDefault(log.NewLogger(handler))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	app := &cli.App{
		Name:  "mevlog",
		Usage: "inspect, filter, and re-execute EVM transactions",
		Commands: []*cli.Command{
			searchCommand,
			txCommand,
			watchCommand,
			chainsCommand,
			chainInfoCommand,
			updateDBCommand,
		},
	}

	format := outputFormat(os.Getenv("MEVLOG_FORMAT"))
	if format == "" {
		format = formatText
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		resolved, ferr := resolveFormat(app, os.Args, format)
		if ferr == nil {
			format = resolved
		}
		os.Exit(reportError(format, err))
	}
}

// resolveFormat re-reads the --format flag from the parsed args so errors
// that occur before a command's own format parsing still render in the
// format the user asked for.
func resolveFormat(app *cli.App, args []string, fallback outputFormat) (outputFormat, error) {
	for i, a := range args {
		if a == "--format" && i+1 < len(args) {
			return parseOutputFormat(args[i+1])
		}
		if len(a) > len("--format=") && a[:len("--format=")] == "--format=" {
			return parseOutputFormat(a[len("--format="):])
		}
	}
	return fallback, nil
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
