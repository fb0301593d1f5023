package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/config"
	"github.com/sakif/codeshare/internal/events"
	"github.com/sakif/codeshare/internal/executor/docker"
	"github.com/sakif/codeshare/internal/mail"
	"github.com/sakif/codeshare/internal/media"
	"github.com/sakif/codeshare/internal/model"
	"github.com/sakif/codeshare/internal/otp"
	"github.com/sakif/codeshare/internal/repository"
	"github.com/sakif/codeshare/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/codeshare/internal/repository/sqlite"
	"github.com/sakif/codeshare/internal/service"
)

// OPTIONAL SUBSYSTEMS:
// Only the database is mandatory. Every other backend has a fallback that
// keeps the server usable on a laptop with nothing but a .env file:
//
//	REDIS_URL         → Redis OTP store      | in-memory store
//	EMAIL_USER/PASS   → SMTP mailer          | log mailer
//	CLOUDINARY_*      → Cloudinary uploads   | store the value as given
//	KAFKA_BROKERS     → Kafka event stream   | no stream
//	SANDBOX_ENABLED   → Docker code runner   | /run answers 503
//	GOOGLE_/FACEBOOK_ → server-side OAuth    | route answers 404

// OpenStore connects to the backend selected by cfg.Database.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverMongoDB:
		store, err := mongodb.New(ctx, cfg.URI, cfg.Name)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		if cfg.URI != ":memory:" {
			// Like `mkdir -p` for the directory holding the database file.
			if err := os.MkdirAll(filepath.Dir(cfg.URI), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.URI)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// newOTPStore returns the Redis store when REDIS_URL is set. The returned
// client is nil for the in-memory store.
func newOTPStore(ctx context.Context, url string) (otp.Store, *redis.Client, error) {
	if url == "" {
		return otp.NewMemoryStore(), nil, nil
	}
	client, err := otp.NewRedisClient(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return otp.NewRedisStore(client), client, nil
}

func newMailer(cfg *config.Config, log zerolog.Logger) mail.Mailer {
	if !cfg.Email.Enabled() {
		return mail.NewLogMailer(log, cfg.IsProduction())
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
}

func newUploader(cfg config.CloudinaryConfig, log zerolog.Logger) media.Uploader {
	if !cfg.Enabled() {
		return media.Passthrough{}
	}
	up, err := media.NewCloudinaryUploader(media.Credentials{
		URL:       cfg.URL,
		CloudName: cfg.CloudName,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cloudinary misconfigured, storing profile pictures as given")
		return media.Passthrough{}
	}
	return up
}

func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.Nop{}
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// newSandbox starts the Docker executor. A nil *docker.Executor means code
// execution is off; callers must not store it in an executor.Executor
// without checking, or the interface would be non-nil.
func newSandbox(ctx context.Context, enabled bool, log zerolog.Logger) *docker.Executor {
	if !enabled {
		return nil
	}
	exec, err := docker.New(ctx, docker.DefaultConfig(), log)
	if err != nil {
		log.Warn().Err(err).Msg("docker executor unavailable, /api/posts/{id}/run will return 503")
		return nil
	}
	return exec
}

// oauthProviders returns the providers that have client credentials.
func oauthProviders(cfg *config.Config) []*auth.OAuthProvider {
	base := cfg.OAuth.CallbackBase
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	callback := func(p model.AuthProvider) string {
		return base + "/api/auth/oauth/" + string(p) + "/callback"
	}

	var out []*auth.OAuthProvider
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		out = append(out, auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, callback(model.ProviderGoogle)))
	}
	if cfg.OAuth.FacebookClientID != "" && cfg.OAuth.FacebookClientSecret != "" {
		out = append(out, auth.NewFacebookProvider(cfg.OAuth.FacebookClientID, cfg.OAuth.FacebookClientSecret, callback(model.ProviderFacebook)))
	}
	return out
}

// StaffAccounts lists the admin and moderator accounts described by cfg.
// Accounts without an email are skipped.
func StaffAccounts(cfg config.SeedConfig) []service.StaffAccount {
	var out []service.StaffAccount
	if cfg.AdminEmail != "" {
		out = append(out, service.StaffAccount{
			Email: cfg.AdminEmail, Password: cfg.AdminPassword, FullName: cfg.AdminName, Role: model.RoleAdmin,
		})
	}
	if cfg.ModeratorEmail != "" {
		out = append(out, service.StaffAccount{
			Email: cfg.ModeratorEmail, Password: cfg.ModeratorPassword, FullName: cfg.ModeratorName, Role: model.RoleModerator,
		})
	}
	return out
}
