package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rankd/internal/adapters/observability"
	redisad "rankd/internal/adapters/redis"
	"rankd/internal/app"
	"rankd/internal/domain"
	"rankd/internal/shared"
	mysqlrepo "rankd/internal/storage/mysql"
)

// Reads capture files (one import batch per JSON file, as produced by the
// extraction tooling) from IMPORT_DIR and merges them into storage. Batches
// for different companies run concurrently; the import service serializes
// batches that target the same company.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("dir", cfg.ImportDir).
		Int("workers", cfg.ImportWorkers).
		Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	importer := app.NewImporter(repo, cache)

	files, err := filepath.Glob(filepath.Join(cfg.ImportDir, "*.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("glob import dir failed")
	}
	if len(files) == 0 {
		log.Warn().Str("dir", cfg.ImportDir).Msg("no capture files found")
		return
	}

	sem := semaphore.NewWeighted(int64(cfg.ImportWorkers))
	var wg sync.WaitGroup

	for _, f := range files {
		f := f

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			raw, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("read failed")
				return
			}
			var batch domain.ImportBatch
			if err := json.Unmarshal(raw, &batch); err != nil {
				log.Warn().Str("file", path).Err(err).Msg("decode failed")
				return
			}

			summary, err := importer.Import(ctx, batch)
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("import failed")
				return
			}
			observability.ObserveImport(summary.Imported, summary.Skipped)
			log.Info().
				Str("file", path).
				Str("place_id", batch.Business.PlaceID).
				Int("imported", summary.Imported).
				Int("skipped", summary.Skipped).
				Msg("import ok")
		}(f)
	}

	wg.Wait()
	log.Info().Msg("import run completed")
}
