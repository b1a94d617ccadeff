// @title Progress API
// @description API for the activity and goal tracking app "Progress"
// @BasePath /api/v1
// @schemes http
package main

import (
	"log"

	"github.com/limbo/progress/internal/api"
	"github.com/limbo/progress/internal/repository"
	"github.com/limbo/progress/internal/service"
	"github.com/limbo/progress/internal/tracker"
	"github.com/limbo/progress/pkg/cleanup"
	"github.com/limbo/progress/pkg/config"
	jwtservice "github.com/limbo/progress/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}
	userService := service.NewUserService(repository.NewUsersRepo(&dbCfg))
	registry := tracker.NewRegistry(
		repository.NewActivitiesRepo(&dbCfg),
		repository.NewGoalsRepo(&dbCfg),
	)
	cleanup.Register(&cleanup.Job{
		Name: "stopping activity timers",
		F:    registry.Shutdown,
	})
	serv := api.New(&api.ServicesList{
		UserService: userService,
		JwtService:  jwtservice.New(cfg.GetString("JWT_SECRET")),
		Registry:    registry,
	})
	err := serv.Run(cfg.GetStringDefault("API_ADDRESS", ":8080"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
	cleanup.CleanUp()
}
