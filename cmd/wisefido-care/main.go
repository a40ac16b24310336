package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-care/internal/config"
	"wisefido-care/internal/database"
	"wisefido-care/internal/domain"
	"wisefido-care/internal/httpapi"
	"wisefido-care/internal/logger"
	caremqtt "wisefido-care/internal/mqtt"
	"wisefido-care/internal/notifier"
	"wisefido-care/internal/repository"
	"wisefido-care/internal/service"
	"wisefido-care/internal/stream"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-care")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Repository：DB 可用时用 Postgres，否则降级到内存实现（本地联调友好）
	var (
		db         *sql.DB
		usersRepo  repository.UsersRepository
		formsRepo  repository.FormsRepository
		eventsRepo repository.FallEventsRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for wisefido-care")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		usersRepo = repository.NewPostgresUsersRepository(db)
		formsRepo = repository.NewPostgresFormsRepository(db)
		eventsRepo = repository.NewPostgresFallEventsRepository(db)
	} else {
		usersRepo = repository.NewMemoryUsersRepo()
		formsRepo = repository.NewMemoryFormsRepo()
		eventsRepo = repository.NewMemoryFallEventsRepo()
	}

	// Redis：跌倒事件流发布（不可用时为 no-op）
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unavailable, fall event stream disabled", zap.Error(err))
			redisClient = nil
		}
	}
	publisher := stream.NewPublisher(redisClient, log)

	// 短信通道：凭证缺失时降级为日志输出
	var sender notifier.AlertSender
	if cfg.SMS.Enabled && cfg.SMS.CustomerID != "" && cfg.SMS.APIKey != "" {
		sender = notifier.NewTelesignClient(cfg.SMS.BaseURL, cfg.SMS.CustomerID, cfg.SMS.APIKey, log)
	} else {
		sender = notifier.NewNoopSender(log)
	}
	fallNotifier := notifier.NewNotifier(sender, cfg.SMS.DispatchTimeout, log)

	// Service 层
	assignmentSvc := service.NewAssignmentService(usersRepo, log)
	fallSvc := service.NewFallService(usersRepo, eventsRepo, fallNotifier, publisher, log)
	formSvc := service.NewFormService(formsRepo, usersRepo, cfg.Form.AllowResolvedAppend, log)

	// Dev bootstrap：本地联调时保证有一个可用的管理员/护士/患者
	if os.Getenv("SEED_DEMO") == "true" {
		seedDemoUsers(usersRepo, log)
	}

	// MQTT：可穿戴设备跌倒上报（默认禁用）
	if cfg.MQTT.Enabled {
		client, err := caremqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed", zap.Error(err))
		} else {
			defer client.Close()
			broker := caremqtt.NewFallBroker(fallSvc, log)
			if err := client.Subscribe(cfg.MQTT.Topic, cfg.MQTT.QoS, broker.HandleMessage); err != nil {
				log.Error("Failed to subscribe fall topic", zap.Error(err))
			} else {
				log.Info("Subscribed to device fall topic", zap.String("topic", cfg.MQTT.Topic))
			}
		}
	}

	// HTTP 层
	router := httpapi.NewRouter(log)
	router.RegisterAssignmentRoutes(httpapi.NewAssignmentHandler(assignmentSvc, log))
	router.RegisterFallRoutes(httpapi.NewFallHandler(fallSvc, log))
	router.RegisterFormRoutes(httpapi.NewFormHandler(formSvc, log))

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		log.Info("wisefido-care listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down wisefido-care")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// seedDemoUsers 写入演示用户（admin/nurse/patient 各一个）
func seedDemoUsers(repo repository.UsersRepository, log *zap.Logger) {
	ctx := context.Background()
	now := time.Now()

	users := []struct {
		name  string
		email string
		phone string
		role  domain.Role
	}{
		{"Demo Admin", "admin@wisefido.local", "", domain.RoleAdmin},
		{"Demo Nurse", "nurse@wisefido.local", "+15005550006", domain.RoleNurse},
		{"Demo Patient", "patient@wisefido.local", "", domain.RolePatient},
	}
	for _, u := range users {
		user := &domain.User{
			UserID:    uuid.New().String(),
			Name:      u.name,
			Email:     u.email,
			Role:      u.role,
			CreatedAt: now,
		}
		if u.phone != "" {
			user.Phone = sql.NullString{String: u.phone, Valid: true}
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			log.Warn("Failed to seed demo user", zap.String("email", u.email), zap.Error(err))
			continue
		}
		log.Info("Seeded demo user",
			zap.String("user_id", user.UserID),
			zap.String("role", string(u.role)),
		)
	}
}
