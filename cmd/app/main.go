package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tasklint/internal"
	"github.com/starford/tasklint/internal/report"
	"github.com/starford/tasklint/internal/rules"
	pkgconfig "github.com/starford/tasklint/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

// loadConfig reads the config file and applies command-line overrides. A
// missing default config file is not an error; the built-in defaults apply.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if !cmd.IsSet("config") {
		load = func(path string, cfg *internal.Config) error {
			_, err := pkgconfig.LoadOptional(path, cfg)
			return err
		}
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if p := cmd.String("rules"); p != "" {
		rc, err := rules.LoadFile(p)
		if err != nil {
			return nil, err
		}
		cfg.Rules = rc
	}
	return cfg, nil
}

// outputOptions resolves the report format and color flags.
func outputOptions(cmd *cli.Command, showChanges bool) ([]internal.Option, error) {
	format, err := report.ParseFormat(cmd.String("format"))
	if err != nil {
		return nil, err
	}
	useColor, err := report.ShouldColor(cmd.String("color"), os.Stdout)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithOutput(os.Stdout),
		internal.WithFormat(format),
		internal.WithTextOptions(report.TextOptions{
			Color:       useColor,
			ShowClean:   cmd.Bool("all"),
			ShowChanges: showChanges,
		}),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func check(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := outputOptions(cmd, false)
	if err != nil {
		return err
	}
	return internal.RunCheck(ctx, cmd.Args().First(), append(opts, internal.WithConfig(cfg))...)
}

func fix(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := outputOptions(cmd, true)
	if err != nil {
		return err
	}
	preview := cfg.Fix.Preview
	switch {
	case cmd.IsSet("preview"):
		preview = cmd.Bool("preview")
	case cmd.Bool("write"):
		preview = false
	}
	return internal.RunFix(ctx, cmd.Args().First(), preview, append(opts, internal.WithConfig(cfg))...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func id(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunID(ctx, cmd.String("file"), int(cmd.Int("heading")), internal.WithConfig(cfg))
}

func main() {
	reportFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, json or yaml",
			Value:   string(report.FormatText),
		},
		&cli.StringFlag{
			Name:  "color",
			Usage: "Colorize text output: auto, on or off",
			Value: report.ColorAuto,
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "List documents without findings too",
		},
	}

	cmd := &cli.Command{
		Name:  "tasklint",
		Usage: "Validate and repair outline task documents",
		// Without a subcommand the HTTP server is started.
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (YAML or TOML)",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Document tree root (overrides vault.path)",
				Sources: cli.EnvVars("TASKLINT_VAULT"),
			},
			&cli.StringFlag{
				Name:  "rules",
				Usage: "Rules file (YAML or TOML) replacing the rules section",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live re-checking",
				Action: serve,
			},
			{
				Name:      "check",
				Usage:     "Validate documents and print a report",
				ArgsUsage: "[dir]",
				Flags:     reportFlags,
				Action:    check,
			},
			{
				Name:      "fix",
				Usage:     "Repair structural defects (backups are written first)",
				ArgsUsage: "[dir]",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "preview",
						Usage: "Compute changes without writing (default from fix.preview)",
					},
					&cli.BoolFlag{
						Name:    "write",
						Aliases: []string{"w"},
						Usage:   "Write changes even when fix.preview is set",
					},
				}, reportFlags...),
				Action: fix,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: mcp,
			},
			{
				Name:  "id",
				Usage: "Print a new TASK_ID, or ensure a heading has one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Document to update (relative to the vault)",
					},
					&cli.IntFlag{
						Name:  "heading",
						Usage: "0-based heading index within --file",
					},
				},
				Action: id,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, internal.ErrFindings) {
			os.Exit(1)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
