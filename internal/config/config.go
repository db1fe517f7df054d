// Package config provides YAML-based configuration loading for the chat
// opinion service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultReplyLimit is the number of patient messages allowed per booking.
const DefaultReplyLimit = 3

// Config is the top-level configuration, loaded from opinion.yaml.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Chat      ChatConfig       `yaml:"chat"`
	Documents DocumentsConfig  `yaml:"documents"`
	Redis     RedisConfig      `yaml:"redis"`
	Mail      MailConfig       `yaml:"mail"`
	Alerts    AlertsConfig     `yaml:"alerts"`
	Digest    DigestConfig     `yaml:"digest"`
	Questions []QuestionConfig `yaml:"questions"`
}

// DatabaseConfig holds connection settings. Driver is one of mysql,
// postgres or sqlite; sqlite only uses Path.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
	LogSQL   bool   `yaml:"log_sql"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"`
}

// AuthConfig names the header the auth gateway uses to pass the caller's
// user ID.
type AuthConfig struct {
	Header string `yaml:"header"`
}

// ChatConfig holds conversation policy settings.
type ChatConfig struct {
	ReplyLimit int `yaml:"reply_limit"`
}

// DocumentsConfig controls where uploaded attachments are written.
type DocumentsConfig struct {
	Root           string `yaml:"root"`
	RootCollection string `yaml:"root_collection"`
}

// RedisConfig enables the distributed booking lock when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// MailConfig controls complaint mail delivery. Command is a shell template
// receiving {{.To}}, {{.Subject}} and {{.Body}}; empty means log only.
type MailConfig struct {
	From        string `yaml:"from"`
	ComplaintTo string `yaml:"complaint_to"`
	Command     string `yaml:"command"`
}

// AlertsConfig selects the staff chat platform for complaint alerts and
// digests. Platform is empty, "slack" or "discord".
type AlertsConfig struct {
	Platform string        `yaml:"platform"`
	Channel  string        `yaml:"channel"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DigestConfig schedules the reply-needed digest. An empty schedule
// disables it.
type DigestConfig struct {
	Schedule string `yaml:"schedule"`
}

// QuestionConfig seeds one intake question.
type QuestionConfig struct {
	Code      string `yaml:"code"`
	Label     string `yaml:"label"`
	HelpText  string `yaml:"help_text"`
	FieldType string `yaml:"field_type"`
	Required  *bool  `yaml:"required"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case "postgres":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "opinion.db"
		}
	}
	if c.Database.Name == "" {
		c.Database.Name = "chat_opinion"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Auth.Header == "" {
		c.Auth.Header = "X-User-ID"
	}
	if c.Chat.ReplyLimit == 0 {
		c.Chat.ReplyLimit = DefaultReplyLimit
	}
	if c.Documents.Root == "" {
		c.Documents.Root = "media"
	}
	if c.Documents.RootCollection == "" {
		c.Documents.RootCollection = "Root"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 10 * time.Second
	}
	for i := range c.Questions {
		if c.Questions[i].FieldType == "" {
			c.Questions[i].FieldType = "singleline"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, postgres, sqlite", c.Database.Driver))
	}
	if c.Chat.ReplyLimit < 0 {
		errs = append(errs, "chat.reply_limit must not be negative")
	}
	switch c.Alerts.Platform {
	case "":
	case "slack":
		if c.Alerts.Slack.BotToken == "" {
			errs = append(errs, "alerts.slack.bot_token is required for platform slack")
		}
	case "discord":
		if c.Alerts.Discord.BotToken == "" {
			errs = append(errs, "alerts.discord.bot_token is required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("alerts.platform %q is not one of slack, discord", c.Alerts.Platform))
	}
	if c.Alerts.Platform != "" && c.Alerts.Channel == "" {
		errs = append(errs, "alerts.channel is required when alerts.platform is set")
	}
	if c.Digest.Schedule != "" && c.Alerts.Platform == "" {
		errs = append(errs, "digest.schedule requires alerts.platform")
	}
	seen := make(map[string]bool)
	for i, q := range c.Questions {
		if q.Code == "" {
			errs = append(errs, fmt.Sprintf("questions[%d].code is required", i))
		}
		if q.Label == "" {
			errs = append(errs, fmt.Sprintf("questions[%d].label is required", i))
		}
		if q.Code != "" && seen[q.Code] {
			errs = append(errs, fmt.Sprintf("questions[%d].code %q is duplicated", i, q.Code))
		}
		seen[q.Code] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
