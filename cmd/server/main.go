package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}

// parseFlags applies command line overrides to cfg and validates the result.
// Flags override the environment.
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	port := fs.String("port", cfg.Server.Port, "Server port")
	publicHost := fs.String("public-host", cfg.Bridge.PublicHost, "Public address the builder is served from")
	providersFile := fs.String("providers", cfg.Providers.File, "Capability provider file (.yaml, .yml or .toml)")
	dev := fs.Bool("dev", cfg.Logging.Development, "Development logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Server.Port = *port
	cfg.Bridge.PublicHost = *publicHost
	cfg.Providers.File = *providersFile
	if *dev && !cfg.Logging.Development {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	return cfg.Validate()
}
