package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/db"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// command runs one migrate verb. db is nil for offline commands.
type command struct {
	offline bool
	run     func(ctx context.Context, db *sql.DB, opts options) (string, error)
}

var commands = map[string]command{
	"create": {offline: true, run: func(_ context.Context, _ *sql.DB, o options) (string, error) {
		if o.name == "" {
			return "", errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		return "created migration: " + path, err
	}},
	"validate": {offline: true, run: func(_ context.Context, _ *sql.DB, o options) (string, error) {
		var err error
		if o.dir == migrate.EmbeddedDir {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(o.dir)
		}
		return "migration validation passed", err
	}},
	"up":     goose("up"),
	"down":   goose("down"),
	"status": goose("status"),
	"version": {run: func(ctx context.Context, db *sql.DB, o options) (string, error) {
		if o.version == "" {
			return "", errors.New("missing -version for version command")
		}
		return "migrated to " + o.version, migrate.MigrateToVersion(ctx, db, o.dir, o.version)
	}},
}

func goose(verb string) command {
	return command{run: func(ctx context.Context, db *sql.DB, o options) (string, error) {
		return "", migrate.Run(ctx, db, o.dir, verb)
	}}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	_ = godotenv.Load()

	verbs := slices.Sorted(maps.Keys(commands))
	verb := flag.String("cmd", "up", "migration command: "+strings.Join(verbs, "|"))
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	useEmbedded := flag.Bool("embedded", false, "use the migrations compiled into this binary instead of -dir")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cmd, ok := commands[*verb]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", *verb)
	}
	opts := options{dir: *dir, name: *name, version: *version}
	if *useEmbedded && *verb != "create" {
		opts.dir = migrate.EmbeddedDir
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *verb,
		"dir": opts.dir,
	})

	var sqlDB *sql.DB
	if !cmd.offline {
		var client *db.Client
		if client, err = db.New(ctx, cfg.DB, logg); err != nil {
			logg.Error(ctx, "database unavailable", err)
			return err
		}
		defer func() { err = multierr.Append(err, client.Close()) }()
		if sqlDB, err = client.DB().DB(); err != nil {
			return fmt.Errorf("sql handle: %w", err)
		}
	}

	logg.Info(ctx, "migrate ready")
	msg, err := cmd.run(ctx, sqlDB, opts)
	if err != nil {
		logg.Error(ctx, "migrate "+*verb+" failed", err)
		return err
	}
	if msg != "" {
		fmt.Println(msg)
	}
	return nil
}
