package main

import (
	"context"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"go.uber.org/zap"
)

// rendererResetter is the part of the renderer that must forget its
// reference frame when a new connection starts.
type rendererResetter interface {
	Reset()
}

// watchSession follows state transitions: it remembers every host the client
// connected to and resets the renderer whenever a new connection starts.
func watchSession(ctx context.Context, events <-chan domain.StateEvent, store ports.SettingsStore, renderer rendererResetter, log *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Infow("session state changed", "from", ev.From.String(), "to", ev.To.String())

			switch ev.To.Kind {
			case domain.StateConnecting:
				renderer.Reset()
			case domain.StateConnected:
				if err := rememberServer(ctx, store, ev.To.ServerURL, time.Now()); err != nil {
					log.Warnw("failed to save recent server", "server_url", ev.To.ServerURL, "error", err)
				}
			}
		}
	}
}

// rememberServer moves url to the front of the recent servers list, keeping
// the access code already known for it.
func rememberServer(ctx context.Context, store ports.SettingsStore, url string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	settings, err := store.Load(ctx)
	if err != nil {
		return err
	}

	code := ""
	if settings.ServerURL == url {
		code = settings.AccessCode
	} else {
		for _, s := range settings.Servers {
			if s.URL == url {
				code = s.AccessCode
				break
			}
		}
	}

	settings.RememberServer(url, code, at)
	return store.Save(ctx, settings)
}

func performanceLogger(log *zap.SugaredLogger) func(domain.PerformanceMetrics) {
	return func(m domain.PerformanceMetrics) {
		log.Infow("performance",
			"fps", m.FPS,
			"latency_ms", m.LatencyMs,
			"bitrate_mbps", m.BitrateMbps,
			"dropped_frames", m.DroppedFrames,
			"total_frames", m.TotalFrames,
		)
	}
}
