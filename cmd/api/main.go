package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"kolekta.org/internal/collection"
	"kolekta.org/internal/directory"
	"kolekta.org/internal/httpapi"
	"kolekta.org/internal/notify"
	"kolekta.org/internal/obs"
	"kolekta.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	hub := notify.New()

	var (
		engine  collection.Service
		dirSvc  *directory.Service
		probe   httpapi.ReadyProbe
		cleanup func()
	)
	if dsn := os.Getenv("KOLEKTA_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn, hub)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		engine = store
		svc, err := directory.NewService(directory.NewPGStore(store.DB()))
		if err != nil {
			log.Fatalf("directory: %v", err)
		}
		dirSvc = svc
		probe = httpapi.ReadyProbe{DB: store.DB()}
		cleanup = func() { _ = store.Close() }
	} else {
		mem := directory.NewMemory()
		engine = collection.NewInMemory(mem, hub)
		svc, err := directory.NewService(mem)
		if err != nil {
			log.Fatalf("directory: %v", err)
		}
		dirSvc = svc
		cleanup = func() {}
		log.Printf("KOLEKTA_PG_DSN is empty, running with the in-memory engine")
	}

	api := httpapi.New(httpapi.Config{
		Collections: engine,
		Directory:   dirSvc,
		Hub:         hub,
		ReadyProbe:  probe,
		Version:     version,
		RateBurst:   envInt("KOLEKTA_RATE_BURST"),
		RatePerSec:  envInt("KOLEKTA_RATE_PER_SEC"),
	})

	addr := os.Getenv("KOLEKTA_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kolekta-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	cleanup()
	log.Println("Stopped")
}

// envInt reads an integer env var; 0 means unset or unparseable.
func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
