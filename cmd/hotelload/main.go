package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/darianmavgo/hotelload/config"
	"github.com/darianmavgo/hotelload/converters"
	_ "github.com/darianmavgo/hotelload/converters/all"
	"github.com/darianmavgo/hotelload/pipeline"
	"github.com/darianmavgo/hotelload/store"
)

const defaultConfigPath = "hotelload.hcl"

func configPath() string {
	if p := os.Getenv("HOTELLOAD_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func loadConfig(verbose bool) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// run loads everything once. The session is opened and closed here so it
// is released exactly once whatever the outcome.
func run(ctx context.Context, cfg *config.Config) error {
	dialect, err := store.DialectFor(cfg.Database.Driver)
	if err != nil {
		return err
	}
	db, err := store.Open(ctx, dialect, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := pipeline.New(db, dialect, cfg)
	if err != nil {
		return err
	}
	report, runErr := runner.Run(ctx)
	if report != nil {
		if err := report.Print(os.Stdout); err != nil {
			log.Printf("[HOTELLOAD] Failed to print report: %v", err)
		}
	}
	return runErr
}

func main() {
	verbose := false
	initConfig := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--verbose", "-v":
			verbose = true
		case "--init-config":
			initConfig = true
		default:
			fmt.Println("Usage:")
			fmt.Println("  hotelload [--verbose]        # Load every export into the destination")
			fmt.Println("  hotelload --init-config      # Write the default configuration to hotelload.hcl")
			fmt.Printf("Source formats: %s\n", strings.Join(converters.Drivers(), ", "))
			os.Exit(2)
		}
	}

	if initConfig {
		path := configPath()
		if err := config.Export(path, config.DefaultConfig()); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		return
	}

	cfg, err := loadConfig(verbose)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		fmt.Printf("Load failed: %v\n", err)
		os.Exit(1)
	}
}
