// Package server assembles the HTTP router.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/handlers"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	jsonBodyLimit   = 1 << 20
	uploadBodyLimit = constants.MaxAttachmentSize + 1<<20
)

// NewSessionStore builds the session backend named by cfg.SessionStore.
func NewSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.SessionStore {
	case "redis":
		s, err := redisStore.NewStore(
			10,                        // Redis pool size
			"tcp",                     // network type
			cfg.RedisAddr(),           // Redis address from config
			"",                        // username (empty for default user)
			"",                        // password (empty = no password)
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		store = s
	default:
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	// Logins pick their own MaxAge; this covers sessions touched elsewhere.
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// NewRouter wires repositories, services and handlers onto a gin engine.
func NewRouter(cfg *config.Config, db *gorm.DB, store storage.Store, sessionStore sessions.Store) *gin.Engine {
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, roleRepo, taskRepo, store)
	taskService := services.NewTaskService(taskRepo, userRepo, store)

	authHandler := handlers.NewAuthHandler(authService, cfg.IsProduction())
	userHandler := handlers.NewUserHandler(userService)
	taskHandler := handlers.NewTaskHandler(taskService)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = constants.MaxAttachmentSize

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", constants.HeaderAuthentication},
			ExposeHeaders:    []string{"Content-Length", constants.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.RequestID(),
		sessions.Sessions(constants.SessionCookieName, sessionStore),
		middleware.ResolveActor(authService),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.URL.Path == "/health"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString(constants.ContextKeyRequestID); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if id, ok := middleware.GetUserID(c); ok {
					fields = append(fields, zap.String("user_id", strconv.FormatUint(id, 10)))
				}

				return fields
			},
		}),
	)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task board API is running",
		})
	})

	authLimiter := middleware.NewIPRateLimiter(rate.Every(6*time.Second), 10, 10*time.Minute)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("", middleware.BodyLimit(jsonBodyLimit))
		{
			auth.POST("/signup", middleware.RateLimit(authLimiter), authHandler.Signup)
			auth.POST("/login", middleware.RateLimit(authLimiter), authHandler.Login)
			auth.DELETE("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireActor(), authHandler.GetCurrentUser)
		}

		api.GET("/assignees", userHandler.ListAssignees)
		api.GET("/roles", userHandler.ListRoles)

		// User routes; the user is loaded before any policy check
		users := api.Group("/users/:id", middleware.LoadUser(userService))
		{
			users.GET("", userHandler.GetUser)
			users.PATCH("", middleware.BodyLimit(jsonBodyLimit), userHandler.UpdateUser)
			users.DELETE("", userHandler.DeleteUser)
			users.GET("/tasks", userHandler.ListUserTasks)
		}

		// Task routes
		tasks := api.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", middleware.BodyLimit(uploadBodyLimit), taskHandler.CreateTask)

			task := tasks.Group("/:id", middleware.LoadTask(taskService))
			task.GET("", taskHandler.GetTask)
			task.PATCH("", middleware.BodyLimit(uploadBodyLimit), taskHandler.UpdateTask)
			task.DELETE("", taskHandler.DeleteTask)
			task.PATCH("/next_state", taskHandler.AdvanceTask)
			task.GET("/attachment", taskHandler.DownloadAttachment)
		}
	}

	return r
}
