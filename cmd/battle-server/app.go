package main

import (
	"github.com/CriminalTalent/battle-system-sub001/internal/config"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
)

func loadEnvOrExit() config.Env {
	env, err := config.LoadEnv()
	if err != nil {
		logging.Fatal("Invalid environment configuration", err, nil)
	}
	return env
}

func loadConfigOrExit(path string) *config.LoadedConfig {
	cfg, err := config.LoadConfigOrDefault(path)
	if err != nil {
		logging.Fatal("Invalid battle configuration", err, logging.Fields{constants.LogFieldPath: path})
	}
	return cfg
}

func createCodeRepositoryOrExit(dbPath string) storage.CodeRepository {
	db, err := storage.OpenAndMigrate(dbPath)
	if err != nil {
		logging.Fatal("Failed to initialize database", err, nil)
	}
	return storage.NewSQLiteRepository(db)
}
