package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/observe"
	"github.com/rbright/hark/internal/output"
	"github.com/rbright/hark/internal/recognizer"
	"github.com/rbright/hark/internal/session"
	"github.com/rbright/hark/internal/speechgrpc"
	"github.com/rbright/hark/internal/version"
	"github.com/rbright/hark/internal/wsasr"
	"golang.org/x/sync/errgroup"
)

// commandListen owns the control socket and runs recognition until ctx ends.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	build := r.NewFactory
	if build == nil {
		build = buildFactory
	}
	factory, err := build(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build recognizer backend failed", "backend", cfg.Backend, "error", err.Error())
		return 1
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: 180 * time.Millisecond,
		Retries:      8,
		OnStale: func(path string) {
			logger.Warn("removed stale control socket", "path", path)
		},
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	metrics := observe.Discard()
	var provider *observe.Provider
	var metricsListener net.Listener
	if addr := strings.TrimSpace(cfg.Metrics.Listen); addr != "" {
		provider, err = observe.InitProvider(observe.ProviderConfig{ServiceVersion: version.Version})
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()

		if metrics, err = observe.NewMetrics(provider.MeterProvider); err != nil {
			fmt.Fprintf(r.Stderr, "error: create metrics: %v\n", err)
			return 1
		}
		if metricsListener, err = net.Listen("tcp", addr); err != nil {
			fmt.Fprintf(r.Stderr, "error: listen metrics %s: %v\n", addr, err)
			return 1
		}
	}

	adapter := recognizer.NewAdapter(logger, nil, factory)
	opts := session.Options{QueueSize: cfg.Engine.QueueSize, Metrics: metrics}
	if hook := output.NewHook(cfg.Engine.ResultCmd, logger); hook != nil {
		opts.Hook = hook
	}
	controller := session.NewController(logger, adapter, opts)
	adapter.SetListener(controller)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, controller)
	})
	if metricsListener != nil {
		g.Go(func() error {
			return observe.Serve(gctx, metricsListener, provider.Handler(), logger)
		})
	}

	var result session.Result
	g.Go(func() error {
		result = controller.Run(gctx)
		return result.Err
	})

	err = g.Wait()
	logListenResult(logger, cfg.Backend, result)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// buildFactory selects the recognizer backend named by cfg.Backend.
func buildFactory(cfg config.Config, logger *slog.Logger) (recognizer.Factory, error) {
	phrases, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("speech context plan", "phrase_count", len(phrases))

	source := &audio.PulseSource{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		Logger:   logger,
	}

	switch cfg.Backend {
	case config.BackendGRPC:
		grpcPhrases := make([]speechgrpc.SpeechPhrase, 0, len(phrases))
		for _, p := range phrases {
			grpcPhrases = append(grpcPhrases, speechgrpc.SpeechPhrase{Phrase: p.Phrase, Boost: p.Boost})
		}
		return speechgrpc.NewFactory(speechgrpc.Config{
			Endpoint:             cfg.GRPC.Endpoint,
			DialTimeout:          cfg.GRPC.DialTimeout(),
			LanguageCode:         cfg.ASR.LanguageCode,
			Model:                cfg.ASR.Model,
			AutomaticPunctuation: cfg.ASR.AutomaticPunctuation,
			MaxAlternatives:      int32(cfg.ASR.MaxAlternatives),
			SpeechPhrases:        grpcPhrases,
			NoSpeechTimeout:      cfg.Recognizer.NoSpeechTimeout(),
			MaxSession:           cfg.Recognizer.MaxSession(),
			DebugDump:            cfg.Debug.EnableGRPCDump,
		}, source, logger)
	case config.BackendWebSocket:
		keywords := make([]wsasr.Keyword, 0, len(phrases))
		for _, p := range phrases {
			keywords = append(keywords, wsasr.Keyword{Keyword: p.Phrase, Boost: p.Boost})
		}
		var apiKey string
		if env := strings.TrimSpace(cfg.WebSocket.APIKeyEnv); env != "" {
			apiKey = os.Getenv(env)
		}
		return wsasr.NewFactory(wsasr.Config{
			URL:                  cfg.WebSocket.URL,
			APIKey:               apiKey,
			LanguageCode:         cfg.ASR.LanguageCode,
			Model:                cfg.ASR.Model,
			AutomaticPunctuation: cfg.ASR.AutomaticPunctuation,
			MaxAlternatives:      cfg.ASR.MaxAlternatives,
			Keywords:             keywords,
			NoSpeechTimeout:      cfg.Recognizer.NoSpeechTimeout(),
			MaxSession:           cfg.Recognizer.MaxSession(),
		}, source, logger)
	default:
		return nil, errors.New("unsupported backend: " + cfg.Backend)
	}
}

func logListenResult(logger *slog.Logger, backend string, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"backend", backend,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"results", result.Results,
		"errors", result.Errors,
		"recreations", result.Recreations,
		"dropped", result.Dropped,
	}

	if result.Err != nil {
		logger.Error("listen failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("listen complete", fields...)
}
