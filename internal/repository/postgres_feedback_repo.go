package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/prepwise/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

// Create はフィードバックをUUIDで採番して作成し、採番したIDを返す。
func (r *PostgresFeedbackRepo) Create(ctx context.Context, feedback *model.Feedback) (string, error) {
	stored := *feedback
	stored.ID = uuid.New().String()
	if err := r.Set(ctx, &stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

// Set は指定IDのフィードバックを作成する。既存の場合は全フィールドを上書きする。
func (r *PostgresFeedbackRepo) Set(ctx context.Context, feedback *model.Feedback) error {
	scores, err := json.Marshal(feedback.CategoryScores)
	if err != nil {
		return fmt.Errorf("failed to encode category scores: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores,
			strengths, areas_for_improvement, final_assessment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			interview_id = EXCLUDED.interview_id,
			user_id = EXCLUDED.user_id,
			total_score = EXCLUDED.total_score,
			category_scores = EXCLUDED.category_scores,
			strengths = EXCLUDED.strengths,
			areas_for_improvement = EXCLUDED.areas_for_improvement,
			final_assessment = EXCLUDED.final_assessment,
			created_at = EXCLUDED.created_at`,
		feedback.ID, feedback.InterviewID, feedback.UserID, feedback.TotalScore, scores,
		pq.Array(nonNilStrings(feedback.Strengths)), pq.Array(nonNilStrings(feedback.AreasForImprovement)),
		feedback.FinalAssessment, feedback.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set feedback: %w", err)
	}
	return nil
}

// FindByInterviewAndUser は面接IDとユーザーIDに一致するフィードバックを1件返す。
// 見つからない場合はnilを返す。
func (r *PostgresFeedbackRepo) FindByInterviewAndUser(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
	var (
		f      model.Feedback
		scores []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, interview_id, user_id, total_score, category_scores,
			strengths, areas_for_improvement, final_assessment, created_at
		 FROM feedback
		 WHERE interview_id = $1 AND user_id = $2
		 LIMIT 1`,
		interviewID, userID,
	).Scan(&f.ID, &f.InterviewID, &f.UserID, &f.TotalScore, &scores,
		(*pq.StringArray)(&f.Strengths), (*pq.StringArray)(&f.AreasForImprovement),
		&f.FinalAssessment, &f.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find feedback: %w", err)
	}

	if err := json.Unmarshal(scores, &f.CategoryScores); err != nil {
		return nil, fmt.Errorf("failed to decode category scores: %w", err)
	}
	return &f, nil
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
