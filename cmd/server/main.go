package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roomrelay/roomrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting room relay server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	hub := server.NewHub()
	registry := server.NewRegistry(*config)
	router := server.NewRouter(registry, hub)

	server.StartHub(hub)

	mux := server.SetupRoutes(hub, router)
	httpServer := server.CreateServer(config.Port, mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
}
