// Command previewd runs the preview runtime: a virtual file store, document
// assembler, and sandboxed execution environment behind an HTTP/WebSocket
// API.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stackpad/preview/internal/infrastructure/config"
	"github.com/stackpad/preview/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	entry := flag.String("entry", "", "Preview entry file (overrides PREVIEW_ENTRY)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *entry != "" {
		cfg.Preview.EntryPath = *entry
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
