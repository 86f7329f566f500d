package main

import (
	"context"
	"database/sql"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"moviedex/internal/archive"
	"moviedex/internal/logging"
	"moviedex/pkg/database"
	"moviedex/pkg/utils"
)

func main() {
	cfg := utils.LoadConfig()
	var (
		dbPath    = flag.String("db", cfg.DBPath, "SQLite database file")
		savedOut  = flag.String("saved", "data/saved_movies.csv", "output CSV path for saved movies")
		trendsOut = flag.String("trends", "data/search_trends.csv", "output CSV path for search trends")
	)
	flag.Parse()

	log, closer := logging.New(cfg.Log)
	defer closer.Close()
	database.SetMigrationLogger(logging.Component(log, "migrate"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.Config{Path: *dbPath})
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	n, err := exportTo(ctx, db, *savedOut, archive.ExportSaved)
	if err != nil {
		log.Error("export saved movies failed", "err", err)
		os.Exit(1)
	}
	m, err := exportTo(ctx, db, *trendsOut, archive.ExportTrends)
	if err != nil {
		log.Error("export search trends failed", "err", err)
		os.Exit(1)
	}

	log.Info("export done", "saved", n, "saved_path", *savedOut, "trends", m, "trends_path", *trendsOut)
}

func exportTo(ctx context.Context, db *sql.DB, path string, fn func(context.Context, *sql.DB, io.Writer) (int, error)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return fn(ctx, db, f)
}
