// Command seed loads demo, fixture or generated assets into the database.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/database"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/seed"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	builtIns := flags.Bool("builtin", true, "seed the built-in demo inventory")
	fixture := flags.String("fixture", "", "path to a YAML asset fixture")
	fake := flags.Int("fake", 0, "number of generated assets to add")
	fakeSeed := flags.Int64("fake-seed", 0, "seed for generated assets (0 picks one at random)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *fake < 0 {
		return errors.New("--fake must not be negative")
	}

	var assets []models.Asset
	if *builtIns {
		assets = append(assets, seed.BuiltInAssets...)
	}
	if *fixture != "" {
		loaded, err := seed.LoadFixture(*fixture)
		if err != nil {
			return err
		}
		assets = append(assets, loaded...)
	}
	if *fake > 0 {
		assets = append(assets, seed.NewFactory(*fakeSeed).BuildAssets(*fake)...)
	}
	if len(assets) == 0 {
		log.Println("nothing to seed")
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return errors.New("refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	n, err := seed.Assets(db, assets)
	if err != nil {
		return err
	}
	log.Printf("seeded %d of %d assets (existing serial numbers skipped)", n, len(assets))
	return nil
}
