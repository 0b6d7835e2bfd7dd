package command

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/sadopc/focustrack/internal/config"
	"github.com/sadopc/focustrack/internal/export"
)

var ErrNotATerminal = errors.New("tui needs an interactive terminal")

// ExportOptions are the flags of the export command.
type ExportOptions struct {
	From     string
	To       string
	FolderID *int64
	Format   string
	Out      string // "-" writes to stdout
}

type Deps struct {
	LoadConfig func(path string) (config.Config, error)
	InitConfig func(path string, overwrite bool) error
	RunServe   func(context.Context, config.Config) error
	RunTUI     func(context.Context, config.Config) error
	RunExport  func(context.Context, config.Config, ExportOptions) error
	RunCleanup func(ctx context.Context, cfg config.Config, days int) error
	IsTerminal func() bool
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "focustrack",
		Usage: "track time spent per task and application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file",
				Value:   defaultConfigPath(),
				EnvVars: []string{"FOCUSTRACK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "database path (overrides the config file)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx, deps)
			if err != nil {
				return err
			}
			return run(ctx.Context, deps.RunServe, "serve", cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the tracker, the retention job and the HTTP API",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					return run(ctx.Context, deps.RunServe, "serve", cfg)
				},
			},
			{
				Name:  "tui",
				Usage: "open the terminal dashboard",
				Action: func(ctx *cli.Context) error {
					if !isTerminal(deps) {
						return ErrNotATerminal
					}
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					return run(ctx.Context, deps.RunTUI, "tui", cfg)
				},
			},
			{
				Name:  "export",
				Usage: "export tracked time grouped by day, task and application",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "first date, YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "last date, YYYY-MM-DD"},
					&cli.Int64Flag{Name: "folder", Usage: "only tasks of this folder id"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: export.FormatJSON, Usage: "json or csv"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "-", Usage: "output file, - for stdout"},
				},
				Action: func(ctx *cli.Context) error {
					format, err := export.ParseFormat(ctx.String("format"))
					if err != nil {
						return err
					}
					opts := ExportOptions{
						From:   ctx.String("from"),
						To:     ctx.String("to"),
						Format: format,
						Out:    ctx.String("out"),
					}
					if ctx.IsSet("folder") {
						id := ctx.Int64("folder")
						if id <= 0 {
							return fmt.Errorf("invalid folder id %d", id)
						}
						opts.FolderID = &id
					}
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					if deps.RunExport == nil {
						return errors.New("export runner is not configured")
					}
					return deps.RunExport(ctx.Context, cfg, opts)
				},
			},
			{
				Name:  "cleanup",
				Usage: "delete activities older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "retention in days (defaults to retention.days)"},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx, deps)
					if err != nil {
						return err
					}
					days := cfg.Retention.Days
					if ctx.IsSet("days") {
						days = ctx.Int("days")
					}
					if days <= 0 {
						return fmt.Errorf("retention days must be positive, got %d", days)
					}
					if deps.RunCleanup == nil {
						return errors.New("cleanup runner is not configured")
					}
					return deps.RunCleanup(ctx.Context, cfg, days)
				},
			},
			{
				Name:  "config",
				Usage: "manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "write the default configuration",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
						},
						Action: func(ctx *cli.Context) error {
							path := ctx.String("config")
							initConfig := deps.InitConfig
							if initConfig == nil {
								initConfig = config.WriteDefault
							}
							if err := initConfig(path, ctx.Bool("force")); err != nil {
								return err
							}
							_, _ = fmt.Fprintf(ctx.App.Writer, "wrote %s\n", path)
							return nil
						},
					},
				},
			},
		},
	}
}

func defaultConfigPath() string {
	p, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return p
}

func loadConfig(ctx *cli.Context, deps Deps) (config.Config, error) {
	load := deps.LoadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load(ctx.String("config"))
	if err != nil {
		return cfg, err
	}
	if cfg.Path == "" {
		cfg.Path = ctx.String("config")
	}
	if db := ctx.String("db"); db != "" {
		cfg.DBPath = db
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func isTerminal(deps Deps) bool {
	if deps.IsTerminal != nil {
		return deps.IsTerminal()
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func run(ctx context.Context, fn func(context.Context, config.Config) error, name string, cfg config.Config) error {
	if fn == nil {
		return fmt.Errorf("%s runner is not configured", name)
	}
	return fn(ctx, cfg)
}
