package main

import (
	"log"
	"os"

	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/seed"
	"github.com/yukikurage/taskboard/internal/services"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Setup(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	if err := database.Connect(cfg); err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	db := database.GetDB()
	if err := database.Migrate(db); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	file, err := seed.Load(cfg.SeedFile)
	if err != nil {
		zap.L().Fatal("Failed to load seed file", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	seeder := seed.NewSeeder(services.NewAuthService(userRepo), userRepo, repository.NewRoleRepository(db))

	created, err := seeder.Apply(file)
	if err != nil {
		zap.L().Fatal("Failed to seed database", zap.Error(err))
	}
	zap.L().Info("Seeding finished", zap.Int("created", created))
}
