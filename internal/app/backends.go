package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hitoshi/prepwise/internal/config"
	"github.com/hitoshi/prepwise/internal/database"
	"github.com/hitoshi/prepwise/internal/handler"
	"github.com/hitoshi/prepwise/internal/identity"
	"github.com/hitoshi/prepwise/internal/repository"
)

const dbConnectTimeout = 10 * time.Second

// backends は設定に応じて選択したストアとIdPの実装をまとめる。
type backends struct {
	users      repository.UserRepository
	interviews repository.InterviewRepository
	feedbacks  repository.FeedbackRepository
	provider   identity.Provider
	health     handler.HealthChecker
	closers    []func() error
}

// Close は開いた接続をすべて閉じる。
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("failed to close backend", slog.String("error", err.Error()))
		}
	}
}

// openBackends はSTORE_BACKENDとIDENTITY_BACKENDに従って依存を構築する。
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.StoreBackend {
	case config.StoreBackendFirestore:
		if err := b.openFirestore(ctx, cfg); err != nil {
			b.Close()
			return nil, err
		}
	default:
		if err := b.openPostgres(ctx, cfg); err != nil {
			b.Close()
			return nil, err
		}
	}

	if cfg.IdentityBackend == config.IdentityBackendFirebase {
		provider, err := identity.NewFirebaseProvider(ctx, identity.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			APIKey:          cfg.FirebaseAPIKey,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize firebase identity provider: %w", err)
		}
		b.provider = provider
	}

	slog.Info("backends initialized",
		slog.String("store", cfg.StoreBackend),
		slog.String("identity", cfg.IdentityBackend),
	)
	return b, nil
}

func (b *backends) openPostgres(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, db.Close)
	slog.Info("database connection established")

	b.users = repository.NewPostgresUserRepo(db)
	b.interviews = repository.NewPostgresInterviewRepo(db)
	b.feedbacks = repository.NewPostgresFeedbackRepo(db)
	b.health = db

	if cfg.IdentityBackend == config.IdentityBackendLocal {
		b.provider = identity.NewLocalProvider(repository.NewPostgresIdentityRepo(db), identity.LocalConfig{
			Secret:     cfg.SessionSecret,
			Issuer:     cfg.BaseURL,
			IDTokenTTL: cfg.IDTokenTTL,
		})
	}
	return nil
}

func (b *backends) openFirestore(ctx context.Context, cfg *config.Config) error {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, opts...)
	if err != nil {
		return fmt.Errorf("failed to create firestore client: %w", err)
	}
	b.closers = append(b.closers, client.Close)
	slog.Info("firestore client created", slog.String("project_id", cfg.FirebaseProjectID))

	b.users = repository.NewFirestoreUserRepo(client)
	b.interviews = repository.NewFirestoreInterviewRepo(client)
	b.feedbacks = repository.NewFirestoreFeedbackRepo(client)
	b.health = firestoreHealthChecker{client: client}
	return nil
}

// firestoreHealthChecker はusersコレクションを1件読み取れるかで疎通を確認する。
type firestoreHealthChecker struct {
	client *firestore.Client
}

func (c firestoreHealthChecker) PingContext(ctx context.Context) error {
	iter := c.client.Collection("users").Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}
