package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/db"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/migrate"
)

type options struct {
	command string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage")

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd": opts.command,
		"dir": opts.dir,
	})
	if err := run(ctx, logg, opts, os.Stdout); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fset := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.command, "cmd", "up", "up|down|status|version|to|create|validate")
	fset.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory used by create and validate")
	fset.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	fset.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=to")
	if err := fset.Parse(args); err != nil {
		return options{}, err
	}

	switch opts.command {
	case "create":
		if opts.name == "" {
			fmt.Fprintln(stderr, "missing -name for create")
			return options{}, errUsage
		}
	case "to":
		if _, err := migrate.ParseVersion(opts.version); err != nil {
			fmt.Fprintln(stderr, err)
			return options{}, errUsage
		}
	case "up", "down", "status", "version", "validate":
	default:
		fmt.Fprintf(stderr, "unknown -cmd value %q\n", opts.command)
		return options{}, errUsage
	}
	return opts, nil
}

func run(ctx context.Context, logg *logger.Logger, opts options, stdout io.Writer) error {
	switch opts.command {
	case "create":
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB)
	if err != nil {
		return err
	}

	switch opts.command {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx)
	case "to":
		target, _ := migrate.ParseVersion(opts.version)
		err = runner.ToVersion(ctx, target)
	}
	if err != nil {
		return err
	}

	version, err := runner.Version(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "db_version", version), "migrate done")
	fmt.Fprintln(stdout, "db version:", version)
	return nil
}
