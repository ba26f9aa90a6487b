package main

import (
	"context" // Context for seeding and reconciliation

	"github.com/sirupsen/logrus" // Logging
	"github.com/spf13/cobra"     // CLI
	"gorm.io/gorm"               // GORM ORM library

	"staff_store/internal/config" // Custom import path (Config)
	"staff_store/internal/db"     // Custom import path (Database)
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "migrate manages the staff store database",
	Long:  "migrate creates or updates the schema. Subcommands seed initial data and reconcile duplicate usernames.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := open()
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate, then create the fallback admin and directory record if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg struct {
			FallbackAdmin config.FallbackAdminConfig
			LDAP          config.LDAPConfig
		}
		if err := config.Load(&cfg); err != nil {
			return err
		}
		gdb, err := open()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if _, err := db.SeedFallbackAdmin(ctx, gdb, cfg.FallbackAdmin.Username, cfg.FallbackAdmin.Password, cfg.FallbackAdmin.Balance); err != nil {
			return err
		}
		return db.SeedDirectoryConfig(ctx, gdb, cfg.LDAP.DirectoryRecord())
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge users whose stored usernames normalize to the same key",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := open()
		if err != nil {
			return err
		}
		reports, err := db.ReconcileUsernames(context.Background(), gdb)
		if err != nil {
			return err
		}
		logrus.WithField("merged", len(reports)).Info("Reconciliation finished")
		return nil
	},
}

// open connects with the DB_* settings and migrates
func open() (*gorm.DB, error) {
	var cfg struct{ DB config.DBConfig }
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	return gdb, db.Migrate(gdb)
}

// Main entry point for migration
func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	rootCmd.AddCommand(seedCmd, reconcileCmd)
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
