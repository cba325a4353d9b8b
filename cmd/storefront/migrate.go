package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/config"
	"github.com/smartdepot/storefront/internal/repository"
)

const versionTimeFormat = "20060102150405"

func migrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "database schema tooling",
	}
	cmd.AddCommand(migrateUpCommand(configPath), migrateCreateCommand(configPath))
	return cmd
}

func migrateUpCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(*configPath)
			if err != nil {
				return err
			}

			cred := credentials(cfg)
			repo, err := repository.NewRepository(cred, zap.NewNop())
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(cred); err != nil {
				return err
			}
			fmt.Println("Migrated up")
			return nil
		},
	}
}

func migrateCreateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "create empty up/down sql migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(*configPath)
			if err != nil {
				return err
			}

			up, down := migrationFileNames(cfg.Database.MigrationsPath, args[0], time.Now())
			if err := os.WriteFile(up, []byte{}, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(down, []byte{}, 0o644); err != nil {
				return err
			}

			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
			return nil
		},
	}
}

func migrationFileNames(dir, name string, now time.Time) (string, string) {
	version := now.Format(versionTimeFormat)
	up := filepath.Join(dir, fmt.Sprintf("%s_%s.up.sql", version, name))
	down := filepath.Join(dir, fmt.Sprintf("%s_%s.down.sql", version, name))
	return up, down
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.Name,
		SSLMode:           cfg.Database.SSLMode,
		MigrationsDirPath: cfg.Database.MigrationsPath,
	}
}
