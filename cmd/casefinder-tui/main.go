package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"casefinder-backend/app"
	"casefinder-backend/config"
	"casefinder-backend/logging"
	"casefinder-backend/tui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	configPath := flag.String("config", os.Getenv("CASEFINDER_CONFIG"), "path to a YAML config file")
	topK := flag.Int("k", 0, "cases per query (defaults to top_k from config)")
	flag.Parse()

	config.LoadEnvFile()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *topK > 0 {
		cfg.TopK = *topK
	}

	core, err := app.Build(context.Background(), cfg, logging.New("casefinder-tui", cfg.Debug))
	if err != nil {
		log.Fatalf("Failed to build retrieval index: %v", err)
	}
	defer core.Close()

	summary := fmt.Sprintf("%d cases indexed with %s (dimension %d), top %d per query",
		core.Retriever.Len(), core.Retriever.ModelID(), core.Retriever.Dimension(), cfg.TopK)
	if _, err := tea.NewProgram(tui.New(core.Retriever, cfg.TopK, summary), tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("TUI error: %v", err)
	}
}
