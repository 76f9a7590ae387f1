// Command lockbeamd drives the optical unlock engine: it mints short-lived
// one-time codes, plays them as Morse-timed light pulses on a GPIO emitter,
// and reports lifecycle events to MQTT and HTTP consumers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/lockbeam/internal/code"
	"github.com/sweeney/lockbeam/internal/config"
	"github.com/sweeney/lockbeam/internal/emitter"
	"github.com/sweeney/lockbeam/internal/engine"
	"github.com/sweeney/lockbeam/internal/player"
	"github.com/sweeney/lockbeam/internal/session"
	"github.com/sweeney/lockbeam/internal/status"
	"github.com/sweeney/lockbeam/internal/store"
	"github.com/sweeney/lockbeam/internal/telemetry"
	"github.com/sweeney/lockbeam/internal/web"
)

func main() {
	// Optional .env for broker credentials; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "TOML config file (empty for built-in defaults)")
	user := flag.String("user", "", "Session owner ID")
	broker := flag.String("broker", "", "MQTT broker address")
	httpAddr := flag.String("http", "", "HTTP status address (\"off\" to disable)")
	storePath := flag.String("store", "", "SQLite state database path")
	pin := flag.Int("pin", 0, "BCM pin number for the emitter")
	unit := flag.Duration("unit", 0, "Morse base unit")
	heartbeat := flag.Duration("heartbeat", -1, "Heartbeat interval (0 to disable)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags override the file.
	if *user != "" {
		cfg.UserID = *user
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
		if *httpAddr == "off" {
			cfg.HTTPAddr = ""
		}
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *pin != 0 {
		cfg.GPIOPin = *pin
	}
	if *unit != 0 {
		cfg.MorseUnitMs = unit.Milliseconds()
	}
	if *heartbeat >= 0 {
		cfg.HeartbeatMs = heartbeat.Milliseconds()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	em, err := emitter.NewRealEmitter(cfg.GPIOPin)
	if err != nil {
		return fmt.Errorf("init emitter: %w", err)
	}
	defer em.Close()

	publisher, err := telemetry.NewRealPublisher(telemetry.Options{
		Broker:   cfg.Broker,
		ClientID: "lockbeamd",
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(cfg.UserID, time.Now(), status.Config{
		CodeTTLMs:     cfg.CodeTTLMs,
		CooldownMs:    cfg.AttemptCooldownMs,
		MaxAttempts:   cfg.MaxAttempts,
		MorseUnitMs:   cfg.MorseUnitMs,
		IdleTimeoutMs: cfg.IdleTimeoutMs,
		WarningLeadMs: cfg.WarningLeadMs,
		HeartbeatMs:   cfg.HeartbeatMs,
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
	})

	lifecycle := code.New(st, cfg.UserID, code.Config{
		Length:      cfg.CodeLength,
		TTL:         cfg.CodeTTL(),
		MaxAttempts: cfg.MaxAttempts,
		Cooldown:    cfg.AttemptCooldown(),
		Unit:        cfg.MorseUnit(),
	}, time.Now)

	eng := buildEngine(lifecycle, em, publisher, tracker, cfg)

	ctx := context.Background()
	eng.Rehydrate(ctx)

	// Publish startup event with full status snapshot.
	snap := tracker.Snapshot()
	startupEvent := telemetry.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP server.
	g, gctx := errgroup.WithContext(ctx)
	var srv *web.Server
	if cfg.HTTPAddr != "" {
		srv = web.New(cfg.HTTPAddr, eng, tracker)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		log.Printf("http server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: user=%s unit=%v ttl=%v broker=%s", cfg.UserID, cfg.MorseUnit(), cfg.CodeTTL(), cfg.Broker)

	var tick <-chan time.Time
	if cfg.HeartbeatMs > 0 {
		ticker := time.NewTicker(cfg.Heartbeat())
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loopErr := runLoop(gctx, eng, publisher, publisher, tracker, time.Now, tick, sigCh)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return loopErr
}

// buildEngine wires the watchdog callbacks through the publisher and
// tracker. On logout the current code is discarded and a fresh session
// watchdog starts, so the daemon keeps serving.
func buildEngine(
	lifecycle *code.Lifecycle,
	em emitter.Emitter,
	publisher telemetry.Publisher,
	tracker *status.Tracker,
	cfg config.Config,
) *engine.Engine {
	var eng *engine.Engine
	var watchdog *session.Watchdog

	watchdog = session.New(session.Config{
		IdleTimeout: cfg.IdleTimeout(),
		WarningLead: cfg.WarningLead(),
	}, session.Callbacks{
		OnWarning: func() {
			log.Printf("session idle, logout in %v", cfg.WarningLead())
			tracker.SetSession(session.StateWarningIssued)
			publishSessionEvent(publisher, telemetry.EventSessionWarning, cfg.UserID, eng)
		},
		OnLogout: func() {
			log.Printf("session logged out after idle timeout")
			tracker.SetSession(session.StateLoggedOut)
			publishSessionEvent(publisher, telemetry.EventSessionLogout, cfg.UserID, eng)
			eng.EndSession(context.Background())
			watchdog.Start()
			tracker.SetSession(watchdog.State())
		},
	})
	watchdog.Start()
	tracker.SetSession(watchdog.State())

	pl := player.New()
	eng = engine.New(lifecycle, pl, em, publisher, tracker, watchdog, cfg.UserID, time.Now)
	return eng
}

func publishSessionEvent(publisher telemetry.Publisher, t telemetry.EventType, userID string, eng *engine.Engine) {
	event := telemetry.Event{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Type:      t,
		UserID:    userID,
	}
	if eng != nil {
		event.RemainingTries = eng.Snapshot().RemainingAttempts
	}
	if err := publisher.Publish(event); err != nil {
		log.Printf("failed to publish %s: %v", t, err)
	}
}

func runLoop(
	ctx context.Context,
	eng *engine.Engine,
	publisher telemetry.Publisher,
	mqttStatus telemetry.ConnectionStatus,
	tracker *status.Tracker,
	now func() time.Time,
	tick <-chan time.Time,
	sig <-chan os.Signal,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			eng.CancelTransmission()
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event := telemetry.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			// Refresh lazily-evaluated expiry for HTTP consumers and
			// publish the heartbeat.
			tracker.SetCode(eng.Snapshot())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			hbEvent := telemetry.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}
