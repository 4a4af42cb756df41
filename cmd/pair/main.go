// Command pair links two existing accounts into a couple so they share a
// diary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"couple-diary/internal/diary"
	"couple-diary/internal/logging"
	"couple-diary/internal/storage"
)

const defaultDBPath = "diary.db"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pair", flag.ContinueOnError)
	fs.SetOutput(stderr)

	first := fs.String("a", "", "First username")
	second := fs.String("b", "", "Second username")
	dbPath := fs.String("db", defaultDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *first == "" || *second == "" {
		fmt.Fprintln(stdout, "Usage: pair -a <username> -b <username> [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: a, b")
	}

	if path := os.Getenv("DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}

	db, err := storage.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger, err := logging.New(stderr, "warn", "text")
	if err != nil {
		return err
	}

	svc := diary.NewService(db, nil, logger)
	couple, err := svc.Pair(context.Background(), *first, *second)
	switch {
	case errors.Is(err, diary.ErrNotFound):
		return fmt.Errorf("unknown user: %w", err)
	case err != nil:
		return fmt.Errorf("failed to pair users: %w", err)
	}

	fmt.Fprintf(stdout, "Paired %s and %s as couple %d\n", *first, *second, couple.ID)
	return nil
}
