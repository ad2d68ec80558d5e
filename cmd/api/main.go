package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "rankd/internal/adapters/http_server"
	"rankd/internal/adapters/observability"
	redisad "rankd/internal/adapters/redis"
	"rankd/internal/adapters/render"
	"rankd/internal/app"
	"rankd/internal/shared"
	mysqlrepo "rankd/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	renderer, err := render.New(cfg.RenderBase, cfg.RenderRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize render client")
	}

	handlers := &server.Handlers{
		Importer:  app.NewImporter(repo, cache),
		Rankings:  app.NewRankingService(repo, cache, cfg.CacheTTL),
		Companies: app.NewCompanyService(repo, cache),
		Snapshots: app.NewSnapshotService(repo),
		Renderer:  renderer,
	}

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
