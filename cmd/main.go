package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ndthang/examcore/config"
	"github.com/ndthang/examcore/database"
	_ "github.com/ndthang/examcore/docs"
	adminctrl "github.com/ndthang/examcore/internal/controller/admin"
	userctrl "github.com/ndthang/examcore/internal/controller/user"
	"github.com/ndthang/examcore/internal/cache"
	"github.com/ndthang/examcore/internal/logger"
	"github.com/ndthang/examcore/internal/middleware"
	"github.com/ndthang/examcore/internal/model"
	"github.com/ndthang/examcore/internal/repository"
	"github.com/ndthang/examcore/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Examcore Attempt API
// @version 1.0
// @description Attempt lifecycle management for timed, attempt-limited assessments.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewRedisClient,
			cache.NewRedisCache,
			NewGinEngine,
		),

		fx.Provide(
			repository.NewTestRepository,
			repository.NewAttemptRepository,
			repository.NewAnswerRepository,
			repository.NewResultRepository,
		),

		fx.Provide(
			service.NewCatalogService,
			service.NewAnswerService,
			service.NewResultService,
			service.NewAdminTestService,
			service.NewAttemptResolver,
			func(attemptRepo repository.AttemptRepository, c cache.Cache, cfg *config.Config) service.AttemptLimitValidator {
				return service.NewAttemptLimitValidator(attemptRepo, c, cfg.Cache.Validation)
			},
			func(attemptRepo repository.AttemptRepository, c cache.Cache, cfg *config.Config) service.StatsService {
				return service.NewStatsService(attemptRepo, c, cfg.Cache.Stats)
			},
			func(
				attemptRepo repository.AttemptRepository,
				resolver service.AttemptResolver,
				validator service.AttemptLimitValidator,
				catalog service.CatalogService,
				answers service.AnswerService,
				results service.ResultService,
				stats service.StatsService,
				c cache.Cache,
				cfg *config.Config,
			) service.AttemptLifecycleService {
				return service.NewAttemptLifecycleService(attemptRepo, resolver, validator, catalog, answers, results, stats, c, cfg.Cache)
			},
			func(attemptRepo repository.AttemptRepository, c cache.Cache, cfg *config.Config) *service.ExpirySweeper {
				return service.NewExpirySweeper(attemptRepo, c, cfg.Sweeper.Schedule)
			},
		),

		fx.Provide(
			userctrl.NewAttemptController,
			adminctrl.NewAdminTestController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(StartSweeper),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the HTTP
// server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	attemptCtrl *userctrl.AttemptController,
	adminTestCtrl *adminctrl.AdminTestController,
) {
	auth := middleware.AuthRequired(cfg.JWTSecret)

	api := router.Group("/api/v1", auth)
	{
		api.POST("/tests/:test_id/attempts", attemptCtrl.StartAttempt)
		api.GET("/tests/:test_id/attempts/active", attemptCtrl.GetActiveAttempt)
		api.GET("/tests/:test_id/attempts/limits", attemptCtrl.ValidateAttemptLimits)

		api.GET("/attempts/:attempt_id", attemptCtrl.GetAttempt)
		api.GET("/attempts/:attempt_id/progress", attemptCtrl.GetAttemptProgress)
		api.PATCH("/attempts/:attempt_id/progress", attemptCtrl.UpdateProgress)
		api.POST("/attempts/:attempt_id/submit", attemptCtrl.SubmitAttempt)
		api.DELETE("/attempts/:attempt_id", attemptCtrl.CancelAttempt)

		api.GET("/my-attempts", attemptCtrl.GetMyAttempts)
	}

	adminAPI := router.Group("/api/v1/admin", auth)
	{
		adminAPI.POST("/tests", adminTestCtrl.CreateTest)
		adminAPI.GET("/tests/:test_id", adminTestCtrl.GetTest)
		adminAPI.GET("/tests/:test_id/attempts", adminTestCtrl.ListTestAttempts)
		adminAPI.GET("/tests/:test_id/stats", adminTestCtrl.GetTestStats)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Examcore API server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// StartSweeper runs the background expiry sweeper when enabled.
func StartSweeper(lc fx.Lifecycle, cfg *config.Config, sweeper *service.ExpirySweeper) {
	if !cfg.Sweeper.Enabled {
		log.Info().Msg("Expiry sweeper disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start()
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.Attempt{},
		&model.Answer{},
		&model.Result{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	if err := repository.EnsureAttemptIndexes(db); err != nil {
		log.Error().Err(err).Msg("Failed to create attempt indexes")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
