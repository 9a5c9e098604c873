package main

import (
	"log"
	"net/http"

	"github.com/codearena/puzzleduel-backend/config"
	"github.com/codearena/puzzleduel-backend/db"
	"github.com/codearena/puzzleduel-backend/internal/auth"
	"github.com/codearena/puzzleduel-backend/internal/events"
	"github.com/codearena/puzzleduel-backend/internal/match"
	"github.com/codearena/puzzleduel-backend/internal/puzzle"
	"github.com/codearena/puzzleduel-backend/internal/ws"
	redisPkg "github.com/codearena/puzzleduel-backend/pkg/redis"
	wsPkg "github.com/codearena/puzzleduel-backend/pkg/websocket"
)

func main() {
	cfg := config.LoadConfig()

	database, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}
	defer database.Close()

	rdb, err := redisPkg.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal("Failed to connect Redis:", err)
	}
	defer rdb.Close()

	registry := puzzle.DefaultRegistry()
	store := match.NewPostgresStore(database)
	publisher := events.NewRedisPublisher(rdb)

	authService := auth.NewService(database, cfg)
	authHandler := auth.NewAuthHandler(authService)
	matchService := match.NewService(store, registry, publisher)
	matchHandler := match.NewHandler(matchService, authService)

	hub := wsPkg.NewHub()
	wsHandler := ws.NewHandler(hub, authService, matchService)
	go ws.NewNotificationWorker(rdb, hub).Run()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	matchHandler.Routes(mux)
	mux.HandleFunc("GET /ws/match/{id}", wsHandler.ServeMatchWS)

	log.Println("Server started at", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, mux))
}
