package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/newuzbdev/edunite/api/swagger"
	"github.com/newuzbdev/edunite/internal/handler"
	"github.com/newuzbdev/edunite/internal/middleware"
	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/repository"
	"github.com/newuzbdev/edunite/internal/service"
	"github.com/newuzbdev/edunite/pkg/cache"
	"github.com/newuzbdev/edunite/pkg/config"
	"github.com/newuzbdev/edunite/pkg/database"
	"github.com/newuzbdev/edunite/pkg/logger"
	corsmiddleware "github.com/newuzbdev/edunite/pkg/middleware/cors"
	reqidmiddleware "github.com/newuzbdev/edunite/pkg/middleware/requestid"
)

// @title Edunite Scheduling API
// @version 0.1.0
// @description Lesson scheduling, timetable and attendance for an education center
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type lessonStore interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Lesson, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	BulkCreate(ctx context.Context, lessons []models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type groupStore interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Student, error)
}

type attendanceStore interface {
	Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	Delete(ctx context.Context, studentID string, date time.Time) error
	ListByStudents(ctx context.Context, studentIDs []string, from, to time.Time) ([]models.AttendanceRecord, error)
}

// repositories holds one storage driver's implementations.
type repositories struct {
	lessons    lessonStore
	groups     groupStore
	students   studentStore
	attendance attendanceStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.ReadinessCheck{}

	var repos repositories
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			logr.Fatal("failed to ensure schema", zap.Error(err))
		}
		repos = postgresRepositories(db)
		checks["postgres"] = db.PingContext
	default:
		store := repository.NewMemoryStore()
		if cfg.Storage.SeedFile != "" {
			if err := store.LoadSeedFile(cfg.Storage.SeedFile); err != nil {
				logr.Fatal("failed to load seed", zap.String("file", cfg.Storage.SeedFile), zap.Error(err))
			}
		}
		repos = memoryRepositories(store)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
			checks["redis"] = redisCheck(client)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TimetableTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	var placeholder service.PlaceholderSource
	if cfg.Attendance.PlaceholderEnabled {
		placeholder = service.HashPlaceholder{}
	}

	attendanceSvc := service.NewAttendanceService(repos.attendance, repos.students, placeholder, metricsSvc, nil, logr)
	lessonSvc := service.NewLessonService(repos.lessons, repos.groups, cacheSvc, metricsSvc, nil, logr)
	timetableSvc := service.NewTimetableService(repos.lessons, repos.groups, cacheSvc, metricsSvc, service.TimetableConfig{
		HourFrom: cfg.Schedule.HourFrom,
		HourTo:   cfg.Schedule.HourTo,
		CacheTTL: cfg.Cache.TimetableTTL,
	}, logr)
	rosterSvc := service.NewRosterService(repos.groups, repos.students, attendanceSvc, metricsSvc, logr, nil, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, "Content-Disposition", reqidmiddleware.HeaderKey))
	r.Use(middleware.Metrics(metricsSvc, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes := handler.Routes{
		Calendar:   handler.NewCalendarHandler(timetableSvc),
		Lessons:    handler.NewLessonHandler(lessonSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc, rosterSvc),
	}
	if cfg.Auth.Enabled {
		routes.Authenticate = middleware.JWT(service.NewTokenVerifier(cfg.Auth.Secret))
		routes.AdminOnly = middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	}
	routes.Register(r.Group(cfg.APIPrefix))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "storage", cfg.Storage.Driver, "auth", cfg.Auth.Enabled)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func postgresRepositories(db *sqlx.DB) repositories {
	return repositories{
		lessons:    repository.NewLessonRepository(db),
		groups:     repository.NewGroupRepository(db),
		students:   repository.NewStudentRepository(db),
		attendance: repository.NewAttendanceRepository(db),
	}
}

func memoryRepositories(store *repository.MemoryStore) repositories {
	return repositories{
		lessons:    repository.NewMemoryLessonRepository(store),
		groups:     repository.NewMemoryGroupRepository(store),
		students:   repository.NewMemoryStudentRepository(store),
		attendance: repository.NewMemoryAttendanceRepository(store),
	}
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
