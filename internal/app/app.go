package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/banlist/internal/access"
	"github.com/router-for-me/banlist/internal/bans"
	"github.com/router-for-me/banlist/internal/config"
	"github.com/router-for-me/banlist/internal/db"
	banhttp "github.com/router-for-me/banlist/internal/http"
	"github.com/router-for-me/banlist/internal/logging"
	"github.com/router-for-me/banlist/internal/models"
	"github.com/router-for-me/banlist/internal/security"
	"github.com/router-for-me/banlist/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// CreateAPIKeyParams holds inputs for API key creation.
type CreateAPIKeyParams struct {
	Name      string
	Admin     bool
	ExpiresIn time.Duration
}

// CreateAccountParams holds inputs for account creation.
type CreateAccountParams struct {
	Username string
	Password string
	Admin    bool
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer serves the ban API until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := logCloser.Close(); errClose != nil {
			log.WithError(errClose).Warn("close log file")
		}
	}()

	conn, err := db.Open(appCfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	banStore, closeStore, err := buildBanStore(ctx, appCfg, conn)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := closeStore(); errClose != nil {
			log.WithError(errClose).Warn("close ban store")
		}
	}()

	resolver := access.ChainResolver{
		access.NewJWTResolver(conn, appCfg.JWT.Secret),
		access.NewAPIKeyResolver(conn),
	}
	svc := bans.NewService(resolver, banStore, bans.Options{
		RequireAdminForGet: appCfg.Bans.RequireAdminForGet,
	})

	if !strings.EqualFold(appCfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := banhttp.NewRouter(banhttp.RouterDeps{
		DB:      conn,
		Service: svc,
		Tokens:  tokenSource(appCfg.Auth),
		JWT:     appCfg.JWT,
	})

	server := &http.Server{
		Addr:              appCfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":    server.Addr,
			"store":   appCfg.Store.Driver,
			"dialect": db.DialectName(conn),
			"config":  configPath,
		}).Info("starting banlist server")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	log.Info("shutting down banlist server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

// CreateAPIKey stores a freshly generated API key and returns it.
func CreateAPIKey(ctx context.Context, cfg config.AppConfig, params CreateAPIKeyParams) (*models.APIKey, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errors.New("app: api key name is required")
	}
	if params.ExpiresIn < 0 {
		return nil, errors.New("app: api key expiry must not be negative")
	}
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}

	key, err := security.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	row := models.APIKey{
		Name:    name,
		APIKey:  key,
		IsAdmin: params.Admin,
		Active:  true,
	}
	if params.ExpiresIn > 0 {
		expiresAt := time.Now().UTC().Add(params.ExpiresIn)
		row.ExpiresAt = &expiresAt
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("app: create api key: %w", errCreate)
	}
	return &row, nil
}

// CreateAccount stores a login account with a hashed password.
func CreateAccount(ctx context.Context, cfg config.AppConfig, params CreateAccountParams) (*models.Account, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, errors.New("app: username is required")
	}
	hash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}

	row := models.Account{
		Username: username,
		Password: hash,
		Active:   true,
		IsAdmin:  params.Admin,
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("app: create account: %w", errCreate)
	}
	return &row, nil
}

func openDatabase(cfg config.AppConfig) (*gorm.DB, error) {
	dsn, err := config.LoadDatabaseDSN(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return nil, err
	}
	return db.Open(dsn)
}

func closeDatabase(conn *gorm.DB) {
	if errClose := db.Close(conn); errClose != nil {
		log.WithError(errClose).Warn("close database")
	}
}

// buildBanStore returns the configured ban store and a function releasing it.
func buildBanStore(ctx context.Context, cfg *config.Config, conn *gorm.DB) (store.BanStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: connect redis %s: %w", cfg.Redis.Addr, errPing)
		}
		return store.NewRedisBanStore(client, store.WithKeyPrefix(cfg.Redis.KeyPrefix)), client.Close, nil
	case config.StoreDriverDatabase, "":
		return store.NewGormBanStore(conn), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("app: unsupported store driver: %s", cfg.Store.Driver)
	}
}

func tokenSource(cfg config.AuthConfig) access.TokenSource {
	allow := true
	if cfg.AllowXAPIKey != nil {
		allow = *cfg.AllowXAPIKey
	}
	return access.TokenSource{Header: cfg.Header, Scheme: cfg.Scheme, AllowXAPIKey: allow}
}
