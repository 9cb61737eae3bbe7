package main

import (
	"context"
	"flag"
	"os"

	"github.com/safar/osushi-store/internal/config"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version")
	dir := flag.String("dir", "", "goose migrations directory (defaults to MIGRATIONS_DIR)")
	version := flag.String("version", "", "target version for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})

	if *dir == "" {
		*dir = cfg.Migrations.Dir
	}
	ctx = logg.WithFields(ctx, map[string]any{"cmd": *cmd, "dir": *dir})

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logg.Error(ctx, "connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, db, *dir, *cmd)
	case "version":
		if *version == "" {
			logg.Warn(ctx, "missing -version for version command")
			os.Exit(1)
		}
		err = migrate.MigrateToVersion(ctx, db, *dir, *version)
	default:
		logg.Warn(ctx, "unknown -cmd value")
		os.Exit(1)
	}

	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrations complete")
}
