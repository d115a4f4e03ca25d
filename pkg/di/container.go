package di

import (
	"context"
	"fmt"

	"livewire/backend/internal/relay"
	"livewire/backend/internal/service"
	"livewire/backend/pkg/config"
	"livewire/backend/pkg/jwt"
	"livewire/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *logger.Logger
	JWTService  *jwt.Service
	UserService *service.UserService
	ChatService *service.ChatService

	// ParticipantCache re-checks conversation membership on the relay's hot
	// path without a database round trip per message.
	ParticipantCache *relay.CachedParticipantChecker
	Relay            *relay.Runtime
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		cfg = config.New()
	}

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.RefreshSecret, cfg.JWT.RefreshExpiry)

	userService := service.NewUserService(db, jwtService)
	chatService := service.NewChatService(db)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Membership facts come from the chat service; the redis decorator keeps
	// repeat lookups off the database.
	var checker relay.ParticipantChecker = relay.ParticipantCheckerFunc(
		func(_ context.Context, conversationID, userID uint) (bool, error) {
			return chatService.IsParticipant(conversationID, userID)
		},
	)

	var participantCache *relay.CachedParticipantChecker
	if rdb != nil {
		participantCache = relay.NewCachedParticipantChecker(checker, rdb, cfg.Relay.ParticipantCacheTTL, log)
		checker = participantCache
	}

	relayRuntime, err := relay.NewRuntime(cfg, checker, rdb, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build relay runtime: %w", err)
	}

	return &Container{
		DB:               db,
		Redis:            rdb,
		Logger:           log,
		JWTService:       jwtService,
		UserService:      userService,
		ChatService:      chatService,
		ParticipantCache: participantCache,
		Relay:            relayRuntime,
	}, nil
}

// Close releases the container's long-lived resources
func (c *Container) Close() error {
	if err := c.Relay.Close(); err != nil {
		return err
	}
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
