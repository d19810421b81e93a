package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/migrations"
	"github.com/noah-isme/ict-admin-api/pkg/config"
	"github.com/noah-isme/ict-admin-api/pkg/database"
	"github.com/noah-isme/ict-admin-api/pkg/logger"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logr.Fatal("failed to set goose dialect", zap.Error(err))
	}

	command := args[0]
	switch command {
	case "up":
		err = goose.UpContext(ctx, db.DB, ".")
	case "down":
		err = goose.DownContext(ctx, db.DB, ".")
	case "status":
		err = goose.StatusContext(ctx, db.DB, ".")
	case "version":
		err = goose.VersionContext(ctx, db.DB, ".")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("migration command failed", zap.String("command", command), zap.Error(err))
	}
	logr.Info("migration command completed", zap.String("command", command))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrator <command>")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  up       apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  down     roll back the latest migration")
	fmt.Fprintln(os.Stderr, "  status   print applied and pending migrations")
	fmt.Fprintln(os.Stderr, "  version  print the current schema version")
}
