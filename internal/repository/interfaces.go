// Package repository はデータ永続化のインターフェースを定義する。
// PostgreSQL実装とFirestore実装を提供し、どちらも同じドキュメント意味論
// （ID指定の取得・作成、部分マージ、ユーザー単位の一覧）に従う。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/prepwise/internal/model"
)

// UserRepository はユーザーディレクトリの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Set は指定IDのユーザーレコードを作成する。既存の場合は上書きする。
	Set(ctx context.Context, user *model.User) error
}

// IdentityRepository はローカルIdPの認証主体の永続化インターフェース。
type IdentityRepository interface {
	// Create は認証主体を作成する。emailが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, identity *model.Identity) error

	// FindByUID はUIDで認証主体を取得する。見つからない場合はnilを返す。
	FindByUID(ctx context.Context, uid string) (*model.Identity, error)

	// FindByEmail はemailで認証主体を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)

	// UpdateTokensValidAfter はセッショントークンの有効開始時刻を更新する。
	// これより前に発行されたトークンは失効扱いとなる。
	UpdateTokensValidAfter(ctx context.Context, uid string, validAfter time.Time) error
}

// InterviewRepository は面接ドキュメントの永続化インターフェース。
type InterviewRepository interface {
	// FindByID は指定IDの面接を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Interview, error)

	// Create は面接を自動採番IDで作成し、採番したIDを返す。
	Create(ctx context.Context, interview *model.Interview) (string, error)

	// MergeCompletion は面接の完了フィールドのみをマージ書き込みする。
	// ドキュメントが存在しない場合は完了フィールドのみを持つドキュメントを作成する。
	MergeCompletion(ctx context.Context, id string, completion model.InterviewCompletion) error

	// ListByUserID は指定ユーザーの面接一覧を返す。順序は保証しない。
	ListByUserID(ctx context.Context, userID string) ([]*model.Interview, error)

	// ListAll は全ユーザーの面接一覧を返す。順序は保証しない。
	ListAll(ctx context.Context) ([]*model.Interview, error)
}

// FeedbackRepository はフィードバックドキュメントの永続化インターフェース。
type FeedbackRepository interface {
	// Create はフィードバックを自動採番IDで作成し、採番したIDを返す。
	Create(ctx context.Context, feedback *model.Feedback) (string, error)

	// Set は指定IDのフィードバックを作成する。既存の場合は上書きする。
	Set(ctx context.Context, feedback *model.Feedback) error

	// FindByInterviewAndUser は面接IDとユーザーIDに一致するフィードバックを1件返す。
	// 見つからない場合はnilを返す。
	FindByInterviewAndUser(ctx context.Context, interviewID, userID string) (*model.Feedback, error)
}
