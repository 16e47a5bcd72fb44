package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"presence-room/internal/app"
	"presence-room/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config the journal was recorded with")
	journalPath := flag.String("journal", "", "journal file to replay")
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintln(os.Stderr, "missing -journal")
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := app.RunReplay(context.Background(), cfg, *journalPath, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}
