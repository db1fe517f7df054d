package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/chatopinion/internal/config"
	"github.com/zulandar/chatopinion/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		db   string
		want string
	}{
		{
			name: "mysql default local",
			cfg:  config.DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, User: "root"},
			db:   "chat_opinion",
			want: "root@tcp(127.0.0.1:3306)/chat_opinion?parseTime=true",
		},
		{
			name: "mysql with password",
			cfg:  config.DatabaseConfig{Driver: "mysql", Host: "db.internal", Port: 3307, User: "svc", Password: "secret"},
			db:   "opinions",
			want: "svc:secret@tcp(db.internal:3307)/opinions?parseTime=true",
		},
		{
			name: "postgres",
			cfg:  config.DatabaseConfig{Driver: "postgres", Host: "10.0.0.5", Port: 5432, User: "postgres", Password: "pw"},
			db:   "opinions",
			want: "host=10.0.0.5 port=5432 user=postgres password=pw dbname=opinions sslmode=disable TimeZone=UTC",
		},
		{
			name: "postgres admin",
			cfg:  config.DatabaseConfig{Driver: "postgres", Host: "10.0.0.5", Port: 5432, User: "postgres"},
			db:   "",
			want: "host=10.0.0.5 port=5432 user=postgres password= dbname=postgres sslmode=disable TimeZone=UTC",
		},
		{
			name: "sqlite",
			cfg:  config.DatabaseConfig{Driver: "sqlite", Path: "/tmp/opinion.db"},
			db:   "ignored",
			want: "/tmp/opinion.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.db)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_MySQLAdminHasNoDatabase(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "mysql", Host: "localhost", Port: 3306, User: "root"}
	dsn := DSN(cfg, "")
	if !strings.Contains(dsn, "tcp(localhost:3306)/?") {
		t.Errorf("admin DSN should select no database: %s", dsn)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("a`b", '`'); got != "a``b" {
		t.Errorf("quoteIdent backtick = %q", got)
	}
	if got := quoteIdent(`a"b`, '"'); got != `a""b` {
		t.Errorf("quoteIdent double quote = %q", got)
	}
}

func TestSQLite_ConnectMigrateSeed(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "opinion.db")}

	gormDB, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	optional := false
	questions := []config.QuestionConfig{
		{Code: "symptoms", Label: "Symptoms", FieldType: "multiline"},
		{Code: "age", Label: "Age", FieldType: "number", Required: &optional},
	}
	if err := SeedQuestions(gormDB, questions); err != nil {
		t.Fatalf("SeedQuestions: %v", err)
	}

	// Re-seeding with a changed label updates in place.
	questions[0].Label = "Describe your symptoms"
	if err := SeedQuestions(gormDB, questions); err != nil {
		t.Fatalf("SeedQuestions (again): %v", err)
	}

	var got []models.ChatOpinionQuestion
	if err := gormDB.Order("sort_order ASC").Find(&got).Error; err != nil {
		t.Fatalf("query questions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("questions = %d, want 2", len(got))
	}
	if got[0].Label != "Describe your symptoms" {
		t.Errorf("label = %q, want updated label", got[0].Label)
	}
	if !got[0].Required {
		t.Error("symptoms should default to required")
	}
	if got[1].Required {
		t.Error("age should be optional")
	}
}

func TestSQLite_CreateAndDropDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.db")
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: path}

	admin, err := ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(admin, "sqlite", path); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	sqlDB, _ := admin.DB()
	sqlDB.Close()

	if err := DropDatabase(nil, "sqlite", path); err != nil {
		t.Fatalf("DropDatabase: %v", err)
	}
	// Dropping a missing file is not an error.
	if err := DropDatabase(nil, "sqlite", path); err != nil {
		t.Fatalf("DropDatabase (missing): %v", err)
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 14 {
		t.Errorf("AllModels() = %d models, want 14", got)
	}
}
