// Package feedback は面接フィードバックの生成と取得を提供する。
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/prepwise/internal/metrics"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/repository"
)

// AssessmentValidator は生成結果の検証インターフェース。
type AssessmentValidator interface {
	Validate(i any) error
}

// CreateParams はフィードバック作成の入力。
type CreateParams struct {
	InterviewID string
	UserID      string
	Transcript  []model.TranscriptEntry
	// FeedbackID が指定された場合はそのIDのドキュメントを上書きする。
	FeedbackID string
}

// Service はフィードバックのサービス層。
type Service struct {
	repo      repository.FeedbackRepository
	generator Generator
	validator AssessmentValidator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.FeedbackRepository,
	generator Generator,
	validator AssessmentValidator,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		generator: generator,
		validator: validator,
		metrics:   collector,
		now:       time.Now,
	}
}

// CreateFeedback は文字起こしを採点してフィードバックを保存し、そのIDを返す。
// 生成結果が検証に失敗した場合は保存せずに破棄する。
func (s *Service) CreateFeedback(ctx context.Context, params CreateParams) (string, error) {
	if params.InterviewID == "" {
		return "", model.NewInvalidArgumentError("Interview ID is required")
	}
	if params.UserID == "" {
		return "", model.NewInvalidArgumentError("User ID is required")
	}

	start := s.now()
	id, err := s.createFeedback(ctx, params)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.RecordFeedbackFailed(elapsed)
		slog.Error("フィードバックの保存に失敗しました",
			slog.String("interview_id", params.InterviewID),
			slog.String("user_id", params.UserID),
			slog.String("error", err.Error()),
		)
		return "", model.ToRemoteUnavailable(err, "Failed to save feedback.")
	}

	s.metrics.RecordFeedbackGenerated(elapsed)
	slog.Info("フィードバックを保存しました",
		slog.String("feedback_id", id),
		slog.String("interview_id", params.InterviewID),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return id, nil
}

func (s *Service) createFeedback(ctx context.Context, params CreateParams) (string, error) {
	assessment, err := s.generator.Generate(ctx, FormatTranscript(params.Transcript))
	if err != nil {
		return "", err
	}
	if s.validator != nil {
		if err := s.validator.Validate(assessment); err != nil {
			return "", fmt.Errorf("生成されたフィードバックが不正です: %w", err)
		}
	}

	fb := &model.Feedback{
		ID:                  params.FeedbackID,
		InterviewID:         params.InterviewID,
		UserID:              params.UserID,
		TotalScore:          assessment.TotalScore,
		CategoryScores:      assessment.CategoryScores,
		Strengths:           nonNil(assessment.Strengths),
		AreasForImprovement: nonNil(assessment.AreasForImprovement),
		FinalAssessment:     assessment.FinalAssessment,
		CreatedAt:           s.now().UTC(),
	}

	if params.FeedbackID != "" {
		if err := s.repo.Set(ctx, fb); err != nil {
			return "", fmt.Errorf("フィードバックの上書きに失敗しました: %w", err)
		}
		return params.FeedbackID, nil
	}

	id, err := s.repo.Create(ctx, fb)
	if err != nil {
		return "", fmt.Errorf("フィードバックの作成に失敗しました: %w", err)
	}
	return id, nil
}

// GetFeedbackByInterviewID は面接IDとユーザーIDに一致するフィードバックを返す。
// 見つからない場合はnilを返す。
func (s *Service) GetFeedbackByInterviewID(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
	if interviewID == "" || userID == "" {
		return nil, nil
	}
	fb, err := s.repo.FindByInterviewAndUser(ctx, interviewID, userID)
	if err != nil {
		slog.Error("フィードバックの取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.ToRemoteUnavailable(err, "Failed to load feedback.")
	}
	return fb, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
