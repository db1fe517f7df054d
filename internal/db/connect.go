package db

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/chatopinion/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific DSN for the configured database. An empty
// name selects no database, used for CREATE DATABASE operations.
func DSN(cfg config.DatabaseConfig, name string) string {
	switch cfg.Driver {
	case "postgres":
		if name == "" {
			name = "postgres"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, name)
	case "sqlite":
		return cfg.Path
	default:
		mc := gomysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		mc.DBName = name
		mc.ParseTime = true
		return mc.FormatDSN()
	}
}

// Connect opens a GORM connection to the configured database.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := open(cfg, DSN(cfg, cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", describe(cfg), err)
	}
	return db, nil
}

// ConnectAdmin opens a GORM connection to the server without selecting the
// service database. For sqlite it opens the database file itself.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := open(cfg, DSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s: %w", describe(cfg), err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
// It is a no-op for sqlite, where the file is created on first connect.
func CreateDatabase(adminDB *gorm.DB, driver, name string) error {
	switch driver {
	case "sqlite":
		return nil
	case "postgres":
		var count int64
		if err := adminDB.Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", name).Scan(&count).Error; err != nil {
			return fmt.Errorf("db: check database %s: %w", name, err)
		}
		if count > 0 {
			return nil
		}
		if err := adminDB.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, quoteIdent(name, '"'))).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", name, err)
		}
		return nil
	default:
		if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", quoteIdent(name, '`'))).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", name, err)
		}
		return nil
	}
}

// DropDatabase drops the named database if it exists. For sqlite, name is
// the database file path.
func DropDatabase(adminDB *gorm.DB, driver, name string) error {
	switch driver {
	case "sqlite":
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("db: drop database %s: %w", name, err)
		}
		return nil
	case "postgres":
		if err := adminDB.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS "%s"`, quoteIdent(name, '"'))).Error; err != nil {
			return fmt.Errorf("db: drop database %s: %w", name, err)
		}
		return nil
	default:
		if err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", quoteIdent(name, '`'))).Error; err != nil {
			return fmt.Errorf("db: drop database %s: %w", name, err)
		}
		return nil
	}
}

func open(cfg config.DatabaseConfig, dsn string) (*gorm.DB, error) {
	level := logger.Silent
	if cfg.LogSQL {
		level = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gcfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		// SQLite allows one writer; a single connection keeps booking
		// transactions from failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return gorm.Open(mysql.Open(dsn), gcfg)
	}
}

func describe(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return "sqlite:" + cfg.Path
	}
	return fmt.Sprintf("%s:%s:%d/%s", cfg.Driver, cfg.Host, cfg.Port, cfg.Name)
}

// quoteIdent escapes the quote character inside an identifier.
func quoteIdent(name string, quote rune) string {
	q := string(quote)
	return strings.ReplaceAll(name, q, q+q)
}
