package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/blackboard/internal/bank"
	"github.com/joelkehle/blackboard/internal/config"
	"github.com/joelkehle/blackboard/internal/httpapi"
	"github.com/joelkehle/blackboard/internal/sockapi"
	"github.com/joelkehle/blackboard/internal/telemetry"
)

func main() {
	configFlag := flag.String("config", "", "path to YAML config file (optional)")
	addrFlag := flag.String("addr", "", "TCP listen address (overrides config)")
	flag.Parse()

	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			log.Printf("loaded env from %s", path)
			break
		}
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.TCPAddr = *addrFlag
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.TCPAddr = ":" + port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}

	b := bank.New(bank.Config{
		DefaultBlockTimeout:  cfg.Bank.BlockTimeout,
		DefaultGatherTimeout: cfg.Bank.GatherTimeout,
		MaxWait:              cfg.Bank.MaxWait,
	})
	d := bank.NewDispatcher(b)

	lis, err := net.Listen("tcp", cfg.Server.TCPAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.Server.TCPAddr, err)
	}

	errs := make(chan error, 2)
	go func() {
		errs <- sockapi.NewServer(d).Serve(ctx, lis)
	}()

	var httpSrv *http.Server
	if cfg.Server.HTTPEnabled {
		httpSrv = &http.Server{
			Addr:    cfg.Server.HTTPAddr,
			Handler: httpapi.NewServer(b, d),
		}
		go func() {
			log.Printf("http listening on %s", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errs <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case err := <-errs:
		if err != nil {
			log.Printf("server error: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
