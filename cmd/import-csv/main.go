package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"
	"time"

	"moviedex/internal/archive"
	"moviedex/internal/logging"
	"moviedex/pkg/database"
	"moviedex/pkg/utils"
)

func main() {
	cfg := utils.LoadConfig()
	var (
		dbPath   = flag.String("db", cfg.DBPath, "SQLite database file")
		savedIn  = flag.String("saved", "data/saved_movies.csv", "input CSV path for saved movies")
		trendsIn = flag.String("trends", "data/search_trends.csv", "input CSV path for search trends")
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

	n, err := importFrom(ctx, db, *savedIn, archive.ImportSaved)
	if err != nil {
		log.Error("import saved movies failed", "path", *savedIn, "err", err)
		os.Exit(1)
	}
	m, err := importFrom(ctx, db, *trendsIn, archive.ImportTrends)
	if err != nil {
		log.Error("import search trends failed", "path", *trendsIn, "err", err)
		os.Exit(1)
	}

	log.Info("import done", "saved", n, "trends", m)
}

// importFrom skips files that do not exist.
func importFrom(ctx context.Context, db *sql.DB, path string, fn func(context.Context, *sql.DB, io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return fn(ctx, db, f)
}
