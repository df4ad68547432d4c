package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/hitoshi/prepwise/internal/model"
)

// FirestoreUserRepo はFirestoreのusersコレクションを使用したユーザーリポジトリ。
type FirestoreUserRepo struct {
	client *firestore.Client
}

// NewFirestoreUserRepo はFirestoreUserRepoを生成する。
func NewFirestoreUserRepo(client *firestore.Client) *FirestoreUserRepo {
	return &FirestoreUserRepo{client: client}
}

// FindByID は指定UIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *FirestoreUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	snap, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user document: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	return &model.User{ID: id, Name: doc.Name, Email: doc.Email}, nil
}

// Set はユーザードキュメントをUIDをキーに書き込む。
func (r *FirestoreUserRepo) Set(ctx context.Context, user *model.User) error {
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, userDoc{
		Name:  user.Name,
		Email: user.Email,
	})
	if err != nil {
		return fmt.Errorf("failed to set user document: %w", err)
	}
	return nil
}

// FirestoreInterviewRepo はFirestoreのinterviewsコレクションを使用した面接リポジトリ。
type FirestoreInterviewRepo struct {
	client *firestore.Client
}

// NewFirestoreInterviewRepo はFirestoreInterviewRepoを生成する。
func NewFirestoreInterviewRepo(client *firestore.Client) *FirestoreInterviewRepo {
	return &FirestoreInterviewRepo{client: client}
}

// FindByID は指定IDの面接を取得する。見つからない場合はnilを返す。
func (r *FirestoreInterviewRepo) FindByID(ctx context.Context, id string) (*model.Interview, error) {
	snap, err := r.client.Collection(interviewsCollection).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interview document: %w", err)
	}
	return decodeInterview(snap)
}

// Create は面接ドキュメントを自動採番IDで作成し、採番したIDを返す。
func (r *FirestoreInterviewRepo) Create(ctx context.Context, interview *model.Interview) (string, error) {
	ref, _, err := r.client.Collection(interviewsCollection).Add(ctx, newInterviewDoc(interview))
	if err != nil {
		return "", fmt.Errorf("failed to add interview document: %w", err)
	}
	return ref.ID, nil
}

// MergeCompletion は完了フィールドのみをマージ書き込みする。
func (r *FirestoreInterviewRepo) MergeCompletion(ctx context.Context, id string, c model.InterviewCompletion) error {
	completedAt := formatDocTime(c.CompletedAt)
	_, err := r.client.Collection(interviewsCollection).Doc(id).Set(ctx, map[string]any{
		"transcript":  toTranscriptDocs(c.Transcript),
		"status":      string(model.InterviewStatusCompleted),
		"finalized":   true,
		"completedAt": completedAt,
		"updatedAt":   completedAt,
		"userId":      c.UserID,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to merge interview document: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーの面接一覧を返す。
func (r *FirestoreInterviewRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Interview, error) {
	return r.list(ctx, r.client.Collection(interviewsCollection).Where("userId", "==", userID))
}

// ListAll は全ユーザーの面接一覧を返す。
func (r *FirestoreInterviewRepo) ListAll(ctx context.Context) ([]*model.Interview, error) {
	return r.list(ctx, r.client.Collection(interviewsCollection).Query)
}

func (r *FirestoreInterviewRepo) list(ctx context.Context, q firestore.Query) ([]*model.Interview, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query interviews: %w", err)
	}

	interviews := make([]*model.Interview, 0, len(snaps))
	for _, snap := range snaps {
		interview, err := decodeInterview(snap)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, interview)
	}
	return interviews, nil
}

func decodeInterview(snap *firestore.DocumentSnapshot) (*model.Interview, error) {
	var doc interviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode interview document %s: %w", snap.Ref.ID, err)
	}
	return doc.toModel(snap.Ref.ID), nil
}

// FirestoreFeedbackRepo はFirestoreのfeedbackコレクションを使用したフィードバックリポジトリ。
type FirestoreFeedbackRepo struct {
	client *firestore.Client
}

// NewFirestoreFeedbackRepo はFirestoreFeedbackRepoを生成する。
func NewFirestoreFeedbackRepo(client *firestore.Client) *FirestoreFeedbackRepo {
	return &FirestoreFeedbackRepo{client: client}
}

// Create はフィードバックドキュメントを自動採番IDで作成し、採番したIDを返す。
func (r *FirestoreFeedbackRepo) Create(ctx context.Context, feedback *model.Feedback) (string, error) {
	ref := r.client.Collection(feedbackCollection).NewDoc()
	if _, err := ref.Set(ctx, newFeedbackDoc(feedback)); err != nil {
		return "", fmt.Errorf("failed to create feedback document: %w", err)
	}
	return ref.ID, nil
}

// Set は指定IDのフィードバックドキュメントを上書きする。
func (r *FirestoreFeedbackRepo) Set(ctx context.Context, feedback *model.Feedback) error {
	_, err := r.client.Collection(feedbackCollection).Doc(feedback.ID).Set(ctx, newFeedbackDoc(feedback))
	if err != nil {
		return fmt.Errorf("failed to set feedback document: %w", err)
	}
	return nil
}

// FindByInterviewAndUser は面接IDとユーザーIDに一致するフィードバックを1件返す。
func (r *FirestoreFeedbackRepo) FindByInterviewAndUser(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
	snaps, err := r.client.Collection(feedbackCollection).
		Where("interviewId", "==", interviewID).
		Where("userId", "==", userID).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	var doc feedbackDoc
	if err := snaps[0].DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode feedback document: %w", err)
	}
	return doc.toModel(snaps[0].Ref.ID), nil
}

// compile-time interface check
var (
	_ UserRepository      = (*FirestoreUserRepo)(nil)
	_ InterviewRepository = (*FirestoreInterviewRepo)(nil)
	_ FeedbackRepository  = (*FirestoreFeedbackRepo)(nil)
)
