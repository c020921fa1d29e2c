package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	sqlitedb "github.com/agalitsyn/sqlite"
	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/taskboard-app/taskboard/internal/notify"
	"github.com/taskboard-app/taskboard/internal/server"
	"github.com/taskboard-app/taskboard/internal/storage/sqlite"
	"github.com/taskboard-app/taskboard/internal/storage/sqlite/migrations"
	"github.com/taskboard-app/taskboard/internal/task"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := ParseFlags()
	setupLogger(cfg)

	if cfg.Debug {
		color.Yellow("running with config")
		fmt.Fprintln(os.Stdout, cfg.String())
	}
	if !cfg.EmptyPermitPolicy.Valid() {
		log.Fatalf("FATAL invalid empty-permit-policy %q, want deny or allow", cfg.EmptyPermitPolicy)
	}
	if cfg.JWTSecret.Unmask() == "" {
		log.Fatalf("FATAL jwt-secret is required")
	}

	db, err := sqlitedb.Connect(cfg.DBPath)
	if err != nil {
		log.Fatalf("FATAL could not connect to database: %s", err)
	}
	defer db.Close()

	if err := sqlitedb.MigrateUp(db, migrations.FS); err != nil {
		log.Fatalf("FATAL could not apply migrations: %s", err)
	}

	appStorage := sqlite.NewAppStorage(db)
	planStorage := sqlite.NewPlanStorage(db)
	taskStorage := sqlite.NewTaskStorage(db)
	userStorage := sqlite.NewUserStorage(db)

	var channels []notify.Channel
	if cfg.SMTP.Host != "" {
		channels = append(channels, notify.NewMailer(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.User,
			cfg.SMTP.Password.Unmask(),
			cfg.SMTP.From,
		))
	}
	if cfg.Telegram.Token.Unmask() != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token.Unmask(), cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("WARN telegram channel disabled: %s", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		log.Printf("WARN no notification channels configured, completions will only be logged")
	}
	dispatcher := notify.NewDispatcher(userStorage, channels)

	engine := task.NewEngine(appStorage, planStorage, taskStorage, userStorage, dispatcher, cfg.EmptyPermitPolicy)

	auth := server.NewAuthenticator([]byte(cfg.JWTSecret.Unmask()), userStorage)
	srv := server.New(cfg.HTTPAddr, engine, appStorage, planStorage, auth)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error {
		log.Printf("INFO listening on %s", cfg.HTTPAddr)
		return srv.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("FATAL %s", err)
	}
	log.Printf("INFO stopped")
}

func setupLogger(cfg Config) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if cfg.Debug {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	lgr.SetupStdLogger(logOpts...)
}
