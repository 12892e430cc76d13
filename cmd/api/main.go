package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"crashgame/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("[MAIN] Shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		log.Printf("[MAIN] Server forced to shutdown with error: %v", err)
	}
	fiberServer.Shutdown()

	log.Println("[MAIN] Server exiting")
	done <- true
}

func main() {
	srv := server.New()
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(srv, done)

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}
	if err := srv.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("[MAIN] Listen error: %v", err)
	}

	<-done
}
