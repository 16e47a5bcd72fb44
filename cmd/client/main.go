package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"presence-room/internal/app"
	"presence-room/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	relayURL := flag.String("relay", "", "relay websocket url (overrides config)")
	name := flag.String("name", "", "display name advertised to the room")
	wander := flag.Bool("wander", false, "walk to random targets")
	journalPath := flag.String("journal", "", "record events to this file (.db for SQLite)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *relayURL != "" {
		cfg.Relay.URL = *relayURL
	}
	if *name != "" {
		cfg.PlayerName = *name
	}
	if *wander {
		cfg.Wander.Enabled = true
	}
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunClient(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
