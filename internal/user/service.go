// Package user はユーザーディレクトリのドメインロジックを提供する。
// サインアップ時のレコード作成と、サインイン時の欠損レコード補修を行う。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/prepwise/internal/identity"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/repository"
)

// NameSanitizer は表示名のサニタイズインターフェース。
type NameSanitizer interface {
	Sanitize(text string) string
}

// Service はユーザーディレクトリのサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer NameSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerがnilの場合は名前をそのまま保存する。
func NewService(userRepo repository.UserRepository, sanitizer NameSanitizer) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
	}
}

// Register はUIDをキーとしてディレクトリレコードを作成する。
// 既に存在する場合はALREADY_EXISTSエラーを返す。
// 存在確認自体の失敗はログに残して「存在しない」とみなし、作成を続行する。
func (s *Service) Register(ctx context.Context, uid, name, email string) (*model.User, error) {
	if uid == "" {
		return nil, model.NewInvalidArgumentError("User ID is required")
	}

	existing, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		slog.Warn("ユーザーの存在確認に失敗しました。新規作成を続行します",
			slog.String("user_id", uid),
			slog.String("error", err.Error()),
		)
		existing = nil
	}
	if existing != nil {
		return nil, model.NewUserAlreadyExistsError()
	}

	u := &model.User{
		ID:    uid,
		Name:  s.sanitize(name),
		Email: email,
	}
	if err := s.userRepo.Set(ctx, u); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました", slog.String("user_id", uid))
	return u, nil
}

// EnsureRecord はIdPのプロフィールからディレクトリレコードを補修する。
// レコードが既に存在する場合は何もしない。
// 名前は表示名（未設定なら空文字）、メールはIdPの値（未設定ならfallbackEmail）を使う。
// 存在確認に失敗した場合も作成を試みる。
func (s *Service) EnsureRecord(ctx context.Context, rec *identity.UserRecord, fallbackEmail string) error {
	existing, err := s.userRepo.FindByID(ctx, rec.UID)
	if err != nil {
		slog.Warn("ユーザーの取得に失敗しました。レコード作成を試みます",
			slog.String("user_id", rec.UID),
			slog.String("error", err.Error()),
		)
	} else if existing != nil {
		return nil
	}

	email := rec.Email
	if email == "" {
		email = fallbackEmail
	}
	u := &model.User{
		ID:    rec.UID,
		Name:  s.sanitize(rec.DisplayName),
		Email: email,
	}
	if err := s.userRepo.Set(ctx, u); err != nil {
		return fmt.Errorf("ユーザーレコードの補修に失敗しました: %w", err)
	}

	slog.Info("欠損していたユーザーレコードを作成しました", slog.String("user_id", rec.UID))
	return nil
}

// Find は指定IDのディレクトリレコードを返す。見つからない場合はnilを返す。
func (s *Service) Find(ctx context.Context, uid string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u, nil
}

func (s *Service) sanitize(name string) string {
	if s.sanitizer == nil {
		return name
	}
	return s.sanitizer.Sanitize(name)
}
