// Package interview は面接ドキュメントの取得・作成・完了処理を提供する。
package interview

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/prepwise/internal/metrics"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/repository"
)

// TranscriptSanitizer は文字起こしのサニタイズインターフェース。
type TranscriptSanitizer interface {
	SanitizeTranscript(entries []model.TranscriptEntry) []model.TranscriptEntry
}

// Service は面接ドキュメントのサービス層。
type Service struct {
	repo      repository.InterviewRepository
	sanitizer TranscriptSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.InterviewRepository, sanitizer TranscriptSanitizer, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// GetInterviewByID は指定IDの面接を返す。見つからない場合はnilを返す。
func (s *Service) GetInterviewByID(ctx context.Context, id string) (*model.Interview, error) {
	if id == "" {
		return nil, nil
	}
	iv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Failed to load interview.")
	}
	return iv, nil
}

// GetInterviewsByUserID は指定ユーザーの面接を作成日時の降順で返す。
func (s *Service) GetInterviewsByUserID(ctx context.Context, userID string) ([]*model.Interview, error) {
	if userID == "" {
		return nil, model.NewInvalidArgumentError("userId is required")
	}
	interviews, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "Failed to load interviews.")
	}
	SortByCreatedAtDesc(interviews)
	return interviews, nil
}

// GetLatestInterviews は面接を作成日時の降順で返す。
// userIDが空の場合は全ユーザーの面接を対象とする。
func (s *Service) GetLatestInterviews(ctx context.Context, userID string) ([]*model.Interview, error) {
	var (
		interviews []*model.Interview
		err        error
	)
	if userID == "" {
		interviews, err = s.repo.ListAll(ctx)
	} else {
		interviews, err = s.repo.ListByUserID(ctx, userID)
	}
	if err != nil {
		return nil, storeError(err, "Failed to load latest interviews.")
	}
	SortByCreatedAtDesc(interviews)
	return interviews, nil
}

// CreateInterviewDocument は既定値で面接ドキュメントを作成し、採番されたIDを返す。
// 文字起こしが空でない場合は完了済みとして保存する。
func (s *Service) CreateInterviewDocument(ctx context.Context, userID string, transcript []model.TranscriptEntry) (string, error) {
	if userID == "" {
		return "", model.NewInvalidArgumentError("User ID is required")
	}

	now := s.now().UTC()
	iv := &model.Interview{
		UserID:     userID,
		Role:       model.DefaultInterviewRole,
		Type:       model.DefaultInterviewType,
		Level:      model.DefaultInterviewLevel,
		TechStack:  []string{},
		Questions:  []string{},
		Finalized:  true,
		Status:     model.InterviewStatusPending,
		CoverImage: model.DefaultInterviewCoverImage,
		CreatedAt:  &now,
		UpdatedAt:  &now,
	}
	if len(transcript) > 0 {
		iv.Status = model.InterviewStatusCompleted
		iv.Transcript = s.sanitize(transcript)
		iv.CompletedAt = &now
	}

	id, err := s.repo.Create(ctx, iv)
	if err != nil {
		return "", storeError(err, "Failed to create interview.")
	}

	s.metrics.RecordInterviewCreated()
	if iv.Status == model.InterviewStatusCompleted {
		s.metrics.RecordInterviewCompleted()
	}
	slog.Info("面接ドキュメントを作成しました",
		slog.String("interview_id", id),
		slog.String("user_id", userID),
		slog.String("status", string(iv.Status)),
	)
	return id, nil
}

// SaveInterviewData は面接の文字起こしと完了情報をマージ書き込みする。
// 既存の他フィールドは保持し、ドキュメントが無い場合は新規に作成される。
func (s *Service) SaveInterviewData(ctx context.Context, interviewID, userID string, transcript []model.TranscriptEntry) error {
	if interviewID == "" {
		return model.NewInvalidArgumentError("Interview ID is required")
	}
	if userID == "" {
		return model.NewInvalidArgumentError("User ID is required")
	}

	completion := model.InterviewCompletion{
		UserID:      userID,
		Transcript:  s.sanitize(transcript),
		CompletedAt: s.now().UTC(),
	}
	if completion.Transcript == nil {
		completion.Transcript = []model.TranscriptEntry{}
	}

	if err := s.repo.MergeCompletion(ctx, interviewID, completion); err != nil {
		return storeError(err, "Failed to save interview data.")
	}

	s.metrics.RecordInterviewCompleted()
	slog.Info("面接データを保存しました",
		slog.String("interview_id", interviewID),
		slog.String("user_id", userID),
		slog.Int("entries", len(completion.Transcript)),
	)
	return nil
}

// storeError はストアの失敗をログに残し、REMOTE_UNAVAILABLEに変換する。
func storeError(err error, message string) error {
	slog.Error(message, slog.String("error", err.Error()))
	return model.ToRemoteUnavailable(err, message)
}

func (s *Service) sanitize(transcript []model.TranscriptEntry) []model.TranscriptEntry {
	if s.sanitizer == nil {
		return transcript
	}
	return s.sanitizer.SanitizeTranscript(transcript)
}

// SortByCreatedAtDesc は面接を作成日時の降順に並べ替える。
// 作成日時が無い面接はUNIXエポックとして扱い、末尾に並ぶ。
func SortByCreatedAtDesc(interviews []*model.Interview) {
	sort.SliceStable(interviews, func(i, j int) bool {
		return interviews[i].CreatedAtOrZero().After(interviews[j].CreatedAtOrZero())
	})
}
