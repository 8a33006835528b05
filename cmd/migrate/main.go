// Command migrate runs schema operations for the lending database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/database"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return errors.New("usage: migrate [--dry-run] <up|auto|status|down> [version]")
}

func run(args []string) error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dryRun := flags.Bool("dry-run", false, "report pending migrations for up without applying them")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flags.Arg(0))) {
	case "up":
		if *dryRun {
			return printStatus(ctx, db)
		}
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		if err := database.ApplySchema(ctx, db, cfg.DBDriver); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
		log.Println("schema applied")
	case "status":
		return printStatus(ctx, db)
	case "down":
		if flags.NArg() < 2 {
			return errors.New("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flags.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flags.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	default:
		return usage()
	}

	return nil
}

func printStatus(ctx context.Context, db *gorm.DB) error {
	applied, pending, err := database.MigrationStatus(ctx, db)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("applied=%d pending=%d", len(applied), len(pending))
	for _, m := range pending {
		log.Printf("pending: %06d_%s", m.Version, m.Name)
	}
	return nil
}
