// Package main is the entry point for the X32 scene monitor.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/apply"
	"github.com/wjensen/x32-scene-monitor/internal/console"
	"github.com/wjensen/x32-scene-monitor/internal/infra/history"
	"github.com/wjensen/x32-scene-monitor/internal/monitor"
	"github.com/wjensen/x32-scene-monitor/internal/transport/socketio"
	"github.com/wjensen/x32-scene-monitor/internal/version"
)

func main() {
	// Command line flags
	port := flag.String("port", "3001", "HTTP server port")
	consoleHost := flag.String("console-host", "", "X32 console host (required)")
	consolePort := flag.Int("console-port", console.DefaultPort, "X32 console UDP port")
	scenePath := flag.String("scene", "", "Path to the scene file to watch (required)")
	dbPath := flag.String("db", history.DefaultDBPath, "Path to the apply-cycle history database")
	debounce := flag.Duration("debounce", monitor.DefaultDebounceWindow, "Quiet window after a file change before applying")
	meters := flag.Bool("meters", true, "Subscribe to console metering")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *consoleHost == "" || *scenePath == "" {
		flag.Usage()
		log.Fatal().Msg("Both -console-host and -scene are required")
	}

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  X32 Scene Monitor")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", *port).
		Str("console_host", *consoleHost).
		Int("console_port", *consolePort).
		Str("scene", *scenePath).
		Dur("debounce", *debounce).
		Bool("meters", *meters).
		Msg("Configuration")

	// Connect to the console
	conn := console.New(*consoleHost, *consolePort)
	if err := conn.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to console")
	}
	defer conn.Disconnect()

	if err := conn.StartRemote(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start console keep-alive")
	}
	defer conn.StopRemote()

	if *meters {
		if err := conn.RequestMeters("meters/1"); err != nil {
			log.Fatal().Err(err).Msg("Failed to request metering")
		}
		defer conn.StopMeters()
	}
	log.Info().Msg("Console link established")

	// Open cycle history
	store := history.NewStore(*dbPath)
	if err := store.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer store.Close()

	// Build the apply pipeline and load the baseline scene
	pipeline := monitor.NewPipeline(*scenePath, apply.New(conn), store, nil)
	if err := pipeline.Prime(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load scene file")
	}

	// Create Socket.io server
	socketServer, err := socketio.NewServer(conn, pipeline, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()
	pipeline.SetNotifier(socketServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *meters {
		socketServer.StartMeterForwarder(ctx)
	}

	// Watch the scene file, applying after a quiet window
	debouncer := monitor.NewDebouncer(*debounce, func() {
		if _, err := pipeline.Run(); err != nil {
			log.Error().Err(err).Msg("Apply cycle failed")
		}
	})
	defer debouncer.Stop()

	watcher, err := monitor.NewWatcher(*scenePath, debouncer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to watch scene file")
	}
	watcher.Start(ctx)

	// Setup HTTP server. Socket.io manages its own CORS headers, so it is
	// mounted outside the middleware.
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !conn.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","console":"disconnected"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","console":"connected"}`))
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// Console status endpoint (REST fallback)
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"console": conn.State(),
			"stats":   conn.Stats(),
		})
	})

	// Recent apply cycles
	mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		recs, err := store.RecentCycles(20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []monitor.CycleRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	})

	root := http.NewServeMux()
	root.Handle("/socket.io/", socketServer)
	root.Handle("/", corsMiddleware(mux))

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+*port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}
