package main

import (
	"context"
	"flag"
	"log"
	"os"

	"casefinder-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS legal_cases (
    -- position is the index position; rows are always read ordered by it
    position INTEGER PRIMARY KEY CHECK (position >= 0),
    title TEXT NOT NULL CHECK (length(trim(title)) > 0),
    jurisdiction TEXT NOT NULL CHECK (length(trim(jurisdiction)) > 0),
    summary TEXT NOT NULL CHECK (length(trim(summary)) > 0),
    link TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS case_analyses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    source VARCHAR(20) NOT NULL CHECK (source IN ('text', 'upload')),
    filename TEXT,
    input_excerpt TEXT NOT NULL,
    case_titles TEXT[] NOT NULL DEFAULT '{}',
    issues TEXT[] NOT NULL DEFAULT '{}',
    "references" TEXT[] NOT NULL DEFAULT '{}',
    raw_output TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_case_analyses_created_at ON case_analyses (created_at DESC);
`

func main() {
	drop := flag.Bool("drop", false, "drop existing tables first (development only)")
	flag.Parse()

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

	if *drop {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS case_analyses, legal_cases CASCADE"); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✓ Dropped existing legal_cases and case_analyses tables")
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("✓ Created legal_cases and case_analyses tables")
}
