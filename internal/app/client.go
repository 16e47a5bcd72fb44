package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"presence-room/internal/config"
	"presence-room/internal/gateway"
	"presence-room/internal/journal"
	"presence-room/internal/net/ws"
	"presence-room/internal/sim"
	"presence-room/internal/state"
	"presence-room/internal/telemetry"
	"presence-room/logging"
)

// Deps carries the shared infrastructure a client is built with.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// Client is one room participant: a session bridged to the relay through a
// gateway, optionally journaling its event stream.
type Client struct {
	cfg     config.Config
	logger  telemetry.Logger
	session *sim.Session
	gateway *gateway.Gateway
	journal journal.Recorder
}

// NewClient wires a session and gateway over transport.
func NewClient(cfg config.Config, transport gateway.Transport, deps Deps) (*Client, error) {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	gw, err := gateway.New(gateway.Config{
		Channel: cfg.Relay.Channel,
		Codec:   cfg.Relay.Codec,
		SelfID:  cfg.PlayerID,
	}, transport, gateway.Deps{Metrics: deps.Metrics, Publisher: deps.Publisher})
	if err != nil {
		return nil, err
	}

	var opts []sim.Option
	var rec journal.Recorder
	if cfg.Journal.Path != "" {
		rec, err = journal.Create(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, sim.WithRecorder(rec))
	}

	meta := cfg.Meta()
	roster := state.NewRoster(cfg.PlayerID, state.Meta{Name: meta.Name, WorldDigest: meta.WorldDigest}, cfg.World.Spawn)
	session, err := sim.NewSession(cfg.SimConfig(), roster, nil, gw, sim.Deps{
		Logger:    logger,
		Metrics:   deps.Metrics,
		Clock:     deps.Clock,
		Publisher: deps.Publisher,
	}, opts...)
	if err != nil {
		if rec != nil {
			_ = rec.Close()
		}
		return nil, err
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		session: session,
		gateway: gw,
		journal: rec,
	}, nil
}

// Session returns the client's session.
func (c *Client) Session() *sim.Session {
	return c.session
}

// Run drives the gateway, the tick loop and, when enabled, the wander bot
// until ctx is cancelled or one of them fails. The journal is closed on
// return.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.gateway.Run(ctx, c.session); err != nil {
			errs <- err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.session.Run(ctx); err != nil {
			errs <- err
			cancel()
		}
	}()
	if c.cfg.Wander.Enabled {
		wanderer := NewWanderer(c.cfg.World, c.cfg.PlayerID, c.cfg.Wander.Seed)
		wg.Add(1)
		go func() {
			defer wg.Done()
			wander(ctx, c.session, wanderer, c.cfg.Wander.Interval)
		}()
	}
	c.logger.Printf("[client] player=%s channel=%s codec=%s digest=%s", c.cfg.PlayerID, c.cfg.Relay.Channel, c.cfg.Relay.Codec, c.session.WorldDigest())
	wg.Wait()
	close(errs)

	var result []error
	for err := range errs {
		result = append(result, err)
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			result = append(result, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(result...)
}

// RunClient connects to the configured relay over a websocket and runs a
// client until ctx is cancelled.
func RunClient(ctx context.Context, cfg config.Config) error {
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.logger.Printf("failed to close logging: %v", cerr)
		}
	}()

	transport, err := ws.NewClient(ws.ClientConfig{
		URL:         cfg.Relay.URL,
		Member:      gateway.Member{ID: cfg.PlayerID, Info: cfg.Meta()},
		DialTimeout: cfg.Relay.DialTimeout,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}
	client, err := NewClient(cfg, transport, Deps{
		Logger:    rt.logger,
		Metrics:   rt.metrics,
		Publisher: rt.router,
	})
	if err != nil {
		return err
	}
	return client.Run(ctx)
}
