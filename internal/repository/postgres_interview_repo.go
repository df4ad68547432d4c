package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/prepwise/internal/model"
)

const interviewColumns = `id, user_id, role, type, level, techstack, questions, status,
	finalized, cover_image, transcript, created_at, updated_at, completed_at`

// PostgresInterviewRepo はPostgreSQLを使用した面接リポジトリ。
type PostgresInterviewRepo struct {
	db *sql.DB
}

// NewPostgresInterviewRepo はPostgresInterviewRepoを生成する。
func NewPostgresInterviewRepo(db *sql.DB) *PostgresInterviewRepo {
	return &PostgresInterviewRepo{db: db}
}

// FindByID は指定IDの面接を取得する。見つからない場合はnilを返す。
func (r *PostgresInterviewRepo) FindByID(ctx context.Context, id string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE id = $1`,
		id,
	)
	interview, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find interview by ID: %w", err)
	}
	return interview, nil
}

// Create は面接をUUIDで採番して作成し、採番したIDを返す。
func (r *PostgresInterviewRepo) Create(ctx context.Context, interview *model.Interview) (string, error) {
	transcript, err := marshalTranscript(interview.Transcript)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interviews (`+interviewColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, interview.UserID, interview.Role, interview.Type, interview.Level,
		pq.Array(nonNilStrings(interview.TechStack)), pq.Array(nonNilStrings(interview.Questions)),
		string(interview.Status), interview.Finalized, interview.CoverImage, transcript,
		interview.CreatedAt, interview.UpdatedAt, interview.CompletedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert interview: %w", err)
	}
	return id, nil
}

// MergeCompletion は面接の完了フィールドのみをマージ書き込みする。
// それ以外のカラムは既存の値を維持する。
func (r *PostgresInterviewRepo) MergeCompletion(ctx context.Context, id string, c model.InterviewCompletion) error {
	transcript, err := marshalTranscript(c.Transcript)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interviews (id, user_id, transcript, status, finalized, completed_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			transcript = EXCLUDED.transcript,
			status = EXCLUDED.status,
			finalized = true,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		id, c.UserID, transcript, string(model.InterviewStatusCompleted), c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to merge interview completion: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーの面接一覧を返す。
func (r *PostgresInterviewRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Interview, error) {
	return r.list(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE user_id = $1`, userID)
}

// ListAll は全ユーザーの面接一覧を返す。
func (r *PostgresInterviewRepo) ListAll(ctx context.Context) ([]*model.Interview, error) {
	return r.list(ctx, `SELECT `+interviewColumns+` FROM interviews`)
}

func (r *PostgresInterviewRepo) list(ctx context.Context, query string, args ...any) ([]*model.Interview, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*model.Interview
	for rows.Next() {
		interview, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interview: %w", err)
		}
		interviews = append(interviews, interview)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interviews: %w", err)
	}
	return interviews, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(s rowScanner) (*model.Interview, error) {
	var (
		i          model.Interview
		status     string
		transcript []byte
		createdAt  sql.NullTime
		updatedAt  sql.NullTime
		completed  sql.NullTime
	)
	err := s.Scan(
		&i.ID, &i.UserID, &i.Role, &i.Type, &i.Level,
		(*pq.StringArray)(&i.TechStack), (*pq.StringArray)(&i.Questions),
		&status, &i.Finalized, &i.CoverImage, &transcript,
		&createdAt, &updatedAt, &completed,
	)
	if err != nil {
		return nil, err
	}

	i.Status = model.InterviewStatus(status)
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &i.Transcript); err != nil {
			return nil, fmt.Errorf("failed to decode transcript: %w", err)
		}
	}
	i.CreatedAt = nullTimePtr(createdAt)
	i.UpdatedAt = nullTimePtr(updatedAt)
	i.CompletedAt = nullTimePtr(completed)
	return &i, nil
}

func marshalTranscript(entries []model.TranscriptEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	return b, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ InterviewRepository = (*PostgresInterviewRepo)(nil)
