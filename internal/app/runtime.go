package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"presence-room/internal/config"
	"presence-room/internal/telemetry"
	"presence-room/logging"
	loggingSinks "presence-room/logging/sinks"
)

// runtime bundles the process logger, the event router and the counters
// shared by every component of one command.
type runtime struct {
	zap     *zap.Logger
	logger  telemetry.Logger
	router  *logging.Router
	metrics *telemetry.Counters
	closers []func(context.Context) error
}

// newRuntime builds the zap process logger and a logging router with the
// configured sinks. Console output goes to stdout.
func newRuntime(cfg config.Config, stdout io.Writer) (*runtime, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	zapLogger, closeZap, err := telemetry.NewZap(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to construct process logger: %w", err)
	}
	rt := &runtime{
		zap:     zapLogger,
		logger:  telemetry.WrapZap(zapLogger.Sugar()),
		metrics: telemetry.NewCounters(),
	}

	sinks := make([]logging.NamedSink, 0, len(cfg.Logging.EnabledSinks))
	for _, name := range cfg.Logging.EnabledSinks {
		var sink logging.Sink
		switch name {
		case logging.SinkConsole:
			sink = loggingSinks.NewConsole(stdout)
		case logging.SinkJSON:
			jsonCfg := cfg.Logging.JSON
			file := telemetry.RotatingFile(jsonCfg.FilePath, jsonCfg.MaxSizeMB, jsonCfg.MaxBackups, jsonCfg.MaxAgeDays, jsonCfg.Compress)
			sink = loggingSinks.NewJSON(file, jsonCfg.FlushInterval)
		case logging.SinkZap:
			sink = loggingSinks.NewZap(zapLogger)
		case logging.SinkMemory:
			sink = loggingSinks.NewMemory()
		default:
			_ = closeZap()
			return nil, fmt.Errorf("unknown logging sink %q", name)
		}
		sinks = append(sinks, logging.NamedSink{Name: name, Sink: sink})
	}

	router, err := logging.NewRouter(cfg.Logging, sinks, logging.WithFallback(rt.logger))
	if err != nil {
		_ = closeZap()
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	rt.router = router
	rt.closers = append(rt.closers,
		router.Close,
		func(context.Context) error { return closeZap() },
	)
	return rt, nil
}

// Close flushes the router before the process logger it may forward to.
func (rt *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, closeFn := range rt.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
