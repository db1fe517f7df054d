package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/alert"
	"github.com/zulandar/chatopinion/internal/alert/discord"
	"github.com/zulandar/chatopinion/internal/alert/slack"
	"github.com/zulandar/chatopinion/internal/booking"
	"github.com/zulandar/chatopinion/internal/changelog"
	"github.com/zulandar/chatopinion/internal/complaint"
	"github.com/zulandar/chatopinion/internal/config"
	"github.com/zulandar/chatopinion/internal/conversation"
	"github.com/zulandar/chatopinion/internal/db"
	"github.com/zulandar/chatopinion/internal/document"
	"github.com/zulandar/chatopinion/internal/lock"
	"github.com/zulandar/chatopinion/internal/mail"
	"github.com/zulandar/chatopinion/internal/models"
	"github.com/zulandar/chatopinion/internal/reply"
	"gorm.io/gorm"
)

const defaultConfigPath = "opinion.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to opinion config file")
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	return cfg, gormDB, nil
}

// app bundles the services built from one config.
type app struct {
	cfg           *config.Config
	db            *gorm.DB
	docs          *document.Store
	alerts        alert.Sender
	conversations *conversation.Service
	bookings      *booking.Service
	complaints    *complaint.Service
	closers       []func() error
}

// newApp wires the services. The Redis locker is used when redis.addr is
// set; otherwise bookings are serialized in-process.
func newApp(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (*app, error) {
	a := &app{cfg: cfg, db: gormDB}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		r, err := lock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockTTL)
		if err != nil {
			return nil, err
		}
		locker = r
		a.closers = append(a.closers, r.Close)
	}

	alerts, err := newAlertSender(cfg.Alerts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.alerts = alerts

	a.docs = document.NewStore(gormDB, cfg.Documents.Root, cfg.Documents.RootCollection, cfg.Server.PublicURL)
	changes := changelog.DB{}

	a.conversations = conversation.NewService(gormDB, conversation.Options{
		Locker:  locker,
		Docs:    a.docs,
		Changes: changes,
		Policy:  reply.Policy{Limit: cfg.Chat.ReplyLimit},
	})
	a.bookings = booking.NewService(gormDB, booking.Options{
		Changes: changes,
		Docs:    a.docs,
	})
	a.complaints = complaint.NewService(gormDB, complaint.Options{
		Changes:     changes,
		Mail:        mail.New(cfg.Mail.Command, cfg.Mail.From),
		Alerts:      alerts,
		ComplaintTo: cfg.Mail.ComplaintTo,
	})
	return a, nil
}

// Close releases external connections.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Printf("opinion: close: %v", err)
		}
	}
	a.closers = nil
}

func newAlertSender(cfg config.AlertsConfig) (alert.Sender, error) {
	switch cfg.Platform {
	case "slack":
		return slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Channel})
	case "discord":
		return discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Channel})
	default:
		return alert.Nop{}, nil
	}
}

// openApp loads config, connects and wires the services.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, gormDB)
}

// lookupUser resolves the --as flag to a user by slug. An empty slug is
// operator mode and returns nil.
func lookupUser(gormDB *gorm.DB, slug string) (*models.User, error) {
	if slug == "" {
		return nil, nil
	}
	var u models.User
	if err := gormDB.Preload("Doctor").Where("slug = ?", slug).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q not found", slug)
		}
		return nil, fmt.Errorf("lookup user %q: %w", slug, err)
	}
	return &u, nil
}

// requireUser is lookupUser for commands that need an actor.
func requireUser(gormDB *gorm.DB, slug string) (*models.User, error) {
	if slug == "" {
		return nil, fmt.Errorf("--as is required")
	}
	return lookupUser(gormDB, slug)
}
