package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/odal/internal"
	pkgconfig "github.com/starford/odal/pkg/config"
)

func run(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		target := cmd.Args().First()
		if target == "" {
			return fmt.Errorf("usage: odal %s <path>", mode)
		}

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		if cmd.IsSet("output") {
			cfg.Output.Path = cmd.String("output")
		}
		if cmd.IsSet("apply") {
			cfg.Rename.Apply = cmd.Bool("apply")
		}
		if cmd.IsSet("no-recurse") {
			cfg.Traverse.Recurse = !cmd.Bool("no-recurse")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithTarget(target),
			internal.WithMode(mode),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	sharedFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the JSON tree to this file instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "no-recurse",
			Usage: "Index the top level only",
		},
	}

	cmd := &cli.Command{
		Name:  "odal",
		Usage: "Content-addressed file and directory indexer with sidecar metadata and rename-to-identity",
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index a file or directory tree and emit the record tree as JSON",
				ArgsUsage: "<path>",
				Flags:     sharedFlags,
				Action:    run(internal.ModeIndex),
			},
			{
				Name:      "rename",
				Usage:     "Rename files to their content-address storage names",
				ArgsUsage: "<path>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "apply",
						Usage: "Perform renames on disk (default is a dry run)",
					},
				}, sharedFlags...),
				Action: run(internal.ModeRename),
			},
			{
				Name:      "watch",
				Usage:     "Re-index the tree on every filesystem change",
				ArgsUsage: "<path>",
				Flags:     sharedFlags,
				Action:    run(internal.ModeWatch),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
