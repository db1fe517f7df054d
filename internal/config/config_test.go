package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: postgres
  host: 10.0.0.5
  port: 5433
  name: opinions
  user: opinion
  password: secret

server:
  port: 9090
  public_url: https://care.example.com/

auth:
  header: X-Forwarded-User

chat:
  reply_limit: 5

documents:
  root: /var/lib/opinion/media
  root_collection: Uploads

redis:
  addr: 127.0.0.1:6379
  lock_ttl: 3s

mail:
  from: noreply@example.com
  complaint_to: complaints@example.com
  command: "sendmail {{.To}}"

alerts:
  platform: slack
  channel: C0123
  slack:
    bot_token: xoxb-test

digest:
  schedule: "0 8 * * 1-5"

questions:
  - code: symptoms
    label: Describe your symptoms
  - code: duration
    label: How long have you had them?
    field_type: number
    required: false
`

const minimalYAML = `
database:
  driver: sqlite
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 5433 {
		t.Errorf("Database host/port = %s:%d, want 10.0.0.5:5433", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Server.PublicURL != "https://care.example.com" {
		t.Errorf("Server.PublicURL = %q, want trailing slash trimmed", cfg.Server.PublicURL)
	}
	if cfg.Auth.Header != "X-Forwarded-User" {
		t.Errorf("Auth.Header = %q", cfg.Auth.Header)
	}
	if cfg.Chat.ReplyLimit != 5 {
		t.Errorf("Chat.ReplyLimit = %d, want 5", cfg.Chat.ReplyLimit)
	}
	if cfg.Redis.LockTTL != 3*time.Second {
		t.Errorf("Redis.LockTTL = %v, want 3s", cfg.Redis.LockTTL)
	}
	if cfg.Alerts.Slack.BotToken != "xoxb-test" {
		t.Errorf("Alerts.Slack.BotToken = %q", cfg.Alerts.Slack.BotToken)
	}
	if cfg.Digest.Schedule != "0 8 * * 1-5" {
		t.Errorf("Digest.Schedule = %q", cfg.Digest.Schedule)
	}
	if len(cfg.Questions) != 2 {
		t.Fatalf("Questions len = %d, want 2", len(cfg.Questions))
	}
	if cfg.Questions[0].FieldType != "singleline" {
		t.Errorf("Questions[0].FieldType = %q, want default singleline", cfg.Questions[0].FieldType)
	}
	if cfg.Questions[1].Required == nil || *cfg.Questions[1].Required {
		t.Error("Questions[1].Required should be explicitly false")
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "opinion.db" {
		t.Errorf("Database.Path = %q, want opinion.db", cfg.Database.Path)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.PublicURL != "http://127.0.0.1:8080" {
		t.Errorf("Server.PublicURL = %q", cfg.Server.PublicURL)
	}
	if cfg.Auth.Header != "X-User-ID" {
		t.Errorf("Auth.Header = %q, want X-User-ID", cfg.Auth.Header)
	}
	if cfg.Chat.ReplyLimit != DefaultReplyLimit {
		t.Errorf("Chat.ReplyLimit = %d, want %d", cfg.Chat.ReplyLimit, DefaultReplyLimit)
	}
	if cfg.Documents.Root != "media" || cfg.Documents.RootCollection != "Root" {
		t.Errorf("Documents = %+v, want media/Root defaults", cfg.Documents)
	}
	if cfg.Redis.LockTTL != 10*time.Second {
		t.Errorf("Redis.LockTTL = %v, want 10s", cfg.Redis.LockTTL)
	}
}

func TestParse_EmptyConfig_DefaultsToMySQL(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Port != 3306 || cfg.Database.User != "root" {
		t.Errorf("Database = %+v, want mysql defaults", cfg.Database)
	}
	if cfg.Database.Name != "chat_opinion" {
		t.Errorf("Database.Name = %q, want chat_opinion", cfg.Database.Name)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown driver", "database:\n  driver: oracle\n", "database.driver"},
		{"negative limit", "chat:\n  reply_limit: -1\n", "reply_limit must not be negative"},
		{"unknown platform", "alerts:\n  platform: irc\n  channel: x\n", "alerts.platform"},
		{"slack without token", "alerts:\n  platform: slack\n  channel: C1\n", "alerts.slack.bot_token"},
		{"discord without token", "alerts:\n  platform: discord\n  channel: 1\n", "alerts.discord.bot_token"},
		{"platform without channel", "alerts:\n  platform: slack\n  slack:\n    bot_token: x\n", "alerts.channel"},
		{"digest without alerts", "digest:\n  schedule: \"0 8 * * *\"\n", "digest.schedule requires"},
		{"question without code", "questions:\n  - label: Age\n", "questions[0].code"},
		{"question without label", "questions:\n  - code: age\n", "questions[0].label"},
		{"duplicate question", "questions:\n  - code: age\n    label: Age\n  - code: age\n    label: Again\n", "duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\nchat:\n  reply_limit: -2\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "database.driver") || !strings.Contains(err.Error(), "reply_limit") {
		t.Errorf("error should list both problems: %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.HasPrefix(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want config: parse: prefix", err.Error())
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opinion.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want config: read prefix", err.Error())
	}
}
