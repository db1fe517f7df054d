package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatopinion/internal/config"
	"github.com/zulandar/chatopinion/internal/db"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the chat opinion database",
		Long:  "Creates the database, migrates all tables and seeds the intake questions from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// databaseName is the name CreateDatabase and DropDatabase expect: the
// file path for sqlite, the schema name otherwise.
func databaseName(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return cfg.Path
	}
	return cfg.Name
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	return initDatabase(cmd, cfg)
}

func initDatabase(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	name := databaseName(cfg.Database)

	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s\n", cfg.Database.Driver)

	if err := db.CreateDatabase(adminDB, cfg.Database.Driver, name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", name)

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", name, err)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedQuestions(gormDB, cfg.Questions); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d questions:", len(cfg.Questions))
	for _, q := range cfg.Questions {
		fmt.Fprintf(out, " %s", q.Code)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nChat opinion database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the chat opinion database",
		Long: `Drops the configured database, then re-creates it, migrates all tables
and seeds the intake questions. Asks for confirmation unless --yes is given;
non-interactive input requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name := databaseName(cfg.Database)
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	if !skipConfirm {
		if f, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("refusing to drop %s without a terminal; pass --yes", name)
		}
		if !confirmReset(cmd, name) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.DropDatabase(adminDB, cfg.Database.Driver, name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped database %s\n", name)

	if sqlDB, err := adminDB.DB(); err == nil {
		sqlDB.Close()
	}
	return initDatabase(cmd, cfg)
}

// confirmReset prompts the user to type "yes" to proceed.
func confirmReset(cmd *cobra.Command, dbName string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "This will permanently drop database %q. Type 'yes' to confirm: ", dbName)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
