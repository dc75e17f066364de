package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/charadev96/gochan/internal/server"
	"github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/server/notify"
	"github.com/charadev96/gochan/internal/server/repository"
	"github.com/charadev96/gochan/internal/server/service"
	"github.com/charadev96/gochan/internal/shared/config"
	"github.com/charadev96/gochan/internal/shared/infra"
	"github.com/charadev96/gochan/internal/shared/log"
)

func main() {
	configPath := flag.String("config", "gochan.toml", "path to the TOML configuration file")
	flag.Parse()

	logger := log.New("main")
	if err := run(*configPath, &logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(configPath string, logger *zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := infra.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	channels, err := repository.NewBunChannelRepository(ctx, db)
	if err != nil {
		return err
	}
	defaults, err := repository.NewBunDefaultChannelRepository(ctx, db)
	if err != nil {
		return err
	}

	svcLogger := log.New("channels")
	mailbox := notify.NewMailbox(notify.DefaultMailboxLimit)
	svc := service.NewChannelService()
	svc.Notifier = mailbox
	svc.StoredChannels = channels
	svc.StoredDefaults = defaults
	svc.TXRunner = infra.NewBunTransactionRunner(db)
	svc.Logger = &svcLogger

	if err := svc.Restore(ctx); err != nil {
		return err
	}
	for _, seed := range cfg.Channels {
		if _, ok := svc.Channels.Resolve(seed.Name); ok {
			continue
		}
		members := make([]domain.UserID, 0, len(seed.Members))
		for _, m := range seed.Members {
			members = append(members, domain.UserID(m))
		}
		if _, err := svc.CreateChannel(ctx, seed.Name, members...); err != nil {
			return fmt.Errorf("failed to seed channel: %w", err)
		}
	}

	adminLogger := log.New("admin")
	msgLogger := log.New("messaging")
	cert, err := server.EnsureCertificate(
		cfg.Messaging.Certificate,
		cfg.Messaging.Key,
		cfg.Messaging.CertificateHosts(),
		&msgLogger,
	)
	if err != nil {
		return err
	}
	srv := &server.Server{
		Admin: server.AdminConfig{
			Addr:   cfg.Admin.Addr,
			Logger: &adminLogger,
		},
		Messaging: server.MessagingConfig{
			Addr:        cfg.Messaging.Addr,
			Logger:      &msgLogger,
			Certificate: &cert,
		},
		ChannelService: svc,
		Mailbox:        mailbox,
	}
	return srv.Serve(ctx)
}
