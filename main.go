package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"newsdigest/config"
	"newsdigest/database"
	"newsdigest/handlers"
	"newsdigest/logger"
	"newsdigest/mailer"
	"newsdigest/store"
	"newsdigest/templates"
)

func main() {
	configPath := flag.String("config", os.Getenv("NEWSDIGEST_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "newsdigest:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close(db)

	renderer, err := mailer.NewRenderer(log)
	if err != nil {
		return err
	}
	transport, err := mailer.NewTransport(cfg.Mail, log)
	if err != nil {
		return err
	}
	pages, err := templates.Load()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.SetHTMLTemplate(pages)

	h := handlers.New(
		store.NewSubscribers(db),
		mailer.NewWelcomer(renderer, transport, cfg.Server.BaseURL),
		cfg.Server.SecretKey,
		log,
	)
	h.Register(r)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("starting web server", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
