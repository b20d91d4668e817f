package main

import (
	"context"
	"flag"
	"log"
	"os"

	"casefinder-backend/config"
	"casefinder-backend/corpus"
	"casefinder-backend/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	file := flag.String("file", "data/legal_cases.json", "JSON corpus to import")
	dryRun := flag.Bool("dry-run", false, "validate the corpus without writing")
	flag.Parse()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	c, err := corpus.Parse(data)
	if err != nil {
		log.Fatalf("Invalid corpus %s: %v", *file, err)
	}
	log.Printf("✓ Validated %d cases from %s", c.Len(), *file)

	if *dryRun {
		return
	}

	config.LoadEnvFile()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repo := repository.NewCaseRepository(pool)
	n, err := repo.ReplaceAll(ctx, c.All())
	if err != nil {
		log.Fatalf("Failed to import cases: %v", err)
	}

	stored, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to verify import: %v", err)
	}
	log.Printf("✓ Imported %d cases (%d rows in legal_cases)", n, stored)
}
