package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/CriminalTalent/battle-system-sub001/internal/api"
	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

func main() {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	env := loadEnvOrExit()
	logging.SetLevel(logging.ParseLevel(env.LogLevel))
	gin.SetMode(env.GinMode)

	cfg := loadConfigOrExit(env.ConfigPath)
	codes := createCodeRepositoryOrExit(env.DBPath)

	if env.SessionSecret == "" {
		logging.Warn("SESSION_SECRET not set; session tokens will not survive a restart", nil)
	}
	signer, err := auth.NewSigner(env.SessionSecret, auth.SessionTTL)
	if err != nil {
		logging.Fatal("Failed to create session signer", err, nil)
	}

	hub := broadcast.NewHub(nil, broadcast.DefaultWindows(cfg.Battle.DedupLine, cfg.Battle.DedupSnapshot))
	svc, err := service.New(service.Options{
		Codes:     codes,
		Publisher: hub,
		Catalog:   cfg.Items,
		Signer:    signer,
		Defaults:  cfg.Battle,
	})
	if err != nil {
		logging.Fatal("Failed to create battle service", err, nil)
	}
	startSweeper(svc, env.SweepInterval)

	handler := api.NewBattleHandler(svc, hub, api.Options{
		AdminKey:       env.AdminKey,
		AllowedOrigins: env.AllowedOrigins,
	})
	router := gin.Default()
	if env.GinMode != gin.DebugMode {
		router = gin.New()
		router.Use(gin.Recovery())
	}
	handler.Routes(router)

	addr := env.Address(cfg)
	logging.Info("Server started", logging.Fields{constants.LogFieldAddr: addr, "items": len(cfg.Items)})
	if err := router.Run(addr); err != nil {
		logging.Fatal("Failed to start server", err, nil)
	}
}
