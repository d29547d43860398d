package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"veldora.quest/internal/llm"
	"veldora.quest/internal/persistence/indexdb"
	persistlog "veldora.quest/internal/persistence/log"
	"veldora.quest/internal/sim/catalogs"
	"veldora.quest/internal/sim/roster"
	"veldora.quest/internal/sim/world"
	"veldora.quest/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "veldora", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		npcsPath   = flag.String("npcs", "", "npc roster path (default: <configs>/npcs.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		model      = flag.String("model", "llama3.2", "ollama model name")
		ollamaURL  = flag.String("ollama_url", "", "ollama base url (default: http://localhost:11434)")
		tickRate   = flag.Int("tick_rate", 10, "ticks per second")
		talkRadius = flag.Float64("talk_radius", 2.0, "max distance for dialogue")
		disableDB  = flag.Bool("disable_db", false, "disable the transcript index db")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	np := strings.TrimSpace(*npcsPath)
	if np == "" {
		np = filepath.Join(*configDir, "npcs.yaml")
	}
	ros, err := roster.Load(np)
	if err != nil {
		logger.Fatalf("load roster: %v", err)
	}

	gw, err := llm.NewOllama(*ollamaURL, *model)
	if err != nil {
		logger.Fatalf("ollama: %v", err)
	}

	w, err := world.New(world.WorldConfig{
		ID:         *worldID,
		TickRateHz: *tickRate,
		TalkRadius: *talkRadius,
		Model:      *model,
	}, cats, ros, gw)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	transcriptLog := persistlog.NewTranscriptLogger(worldDir)
	defer transcriptLog.Close()
	w.AddTranscriptLogger(transcriptLog)

	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats); err != nil {
			logger.Printf("index db: upsert catalogs: %v", err)
		}
		w.AddTranscriptLogger(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP veldora_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE veldora_world_tick gauge\n")
		fmt.Fprintf(rw, "veldora_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (model=%s)", *addr, *model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The world must stop writing transcripts before the deferred sink
	// closes run.
	cancel()
	<-worldDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
