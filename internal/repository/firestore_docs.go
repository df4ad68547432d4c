package repository

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitoshi/prepwise/internal/model"
)

// Firestoreのコレクション名
const (
	usersCollection      = "users"
	interviewsCollection = "interviews"
	feedbackCollection   = "feedback"
)

// userDoc はusersコレクションのドキュメント。ドキュメントIDはUID。
type userDoc struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
}

type transcriptDoc struct {
	Role    string `firestore:"role"`
	Content string `firestore:"content"`
}

// interviewDoc はinterviewsコレクションのドキュメント。
// タイムスタンプはISO 8601文字列で書き込むが、
// 既存データにはTimestamp型も混在するためanyで受ける。
type interviewDoc struct {
	UserID      string          `firestore:"userId"`
	Role        string          `firestore:"role"`
	Type        string          `firestore:"type"`
	Level       string          `firestore:"level"`
	TechStack   []string        `firestore:"techstack"`
	Questions   []string        `firestore:"questions"`
	Status      string          `firestore:"status"`
	Finalized   bool            `firestore:"finalized"`
	CoverImage  string          `firestore:"coverImage,omitempty"`
	Transcript  []transcriptDoc `firestore:"transcript,omitempty"`
	CreatedAt   any             `firestore:"createdAt,omitempty"`
	UpdatedAt   any             `firestore:"updatedAt,omitempty"`
	CompletedAt any             `firestore:"completedAt,omitempty"`
}

type categoryScoreDoc struct {
	Name    string `firestore:"name"`
	Score   int    `firestore:"score"`
	Comment string `firestore:"comment"`
}

// feedbackDoc はfeedbackコレクションのドキュメント。
type feedbackDoc struct {
	InterviewID         string             `firestore:"interviewId"`
	UserID              string             `firestore:"userId"`
	TotalScore          int                `firestore:"totalScore"`
	CategoryScores      []categoryScoreDoc `firestore:"categoryScores"`
	Strengths           []string           `firestore:"strengths"`
	AreasForImprovement []string           `firestore:"areasForImprovement"`
	FinalAssessment     string             `firestore:"finalAssessment"`
	CreatedAt           any                `firestore:"createdAt"`
}

// isNotFound はFirestoreのNotFoundエラーかどうかを判定する。
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// formatDocTime は時刻をFirestoreに書き込むISO 8601文字列に変換する。
func formatDocTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// parseDocTime はFirestoreから読み出した時刻フィールドを解釈する。
// ISO 8601文字列とTimestamp型の両方を受け付け、解釈できない場合はnilを返す。
func parseDocTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func optionalDocTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDocTime(*t)
}

func toTranscriptDocs(entries []model.TranscriptEntry) []transcriptDoc {
	docs := make([]transcriptDoc, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, transcriptDoc{Role: e.Role, Content: e.Content})
	}
	return docs
}

func newInterviewDoc(i *model.Interview) *interviewDoc {
	doc := &interviewDoc{
		UserID:      i.UserID,
		Role:        i.Role,
		Type:        i.Type,
		Level:       i.Level,
		TechStack:   nonNilStrings(i.TechStack),
		Questions:   nonNilStrings(i.Questions),
		Status:      string(i.Status),
		Finalized:   i.Finalized,
		CoverImage:  i.CoverImage,
		CreatedAt:   optionalDocTime(i.CreatedAt),
		UpdatedAt:   optionalDocTime(i.UpdatedAt),
		CompletedAt: optionalDocTime(i.CompletedAt),
	}
	if len(i.Transcript) > 0 {
		doc.Transcript = toTranscriptDocs(i.Transcript)
	}
	return doc
}

func (d *interviewDoc) toModel(id string) *model.Interview {
	i := &model.Interview{
		ID:          id,
		UserID:      d.UserID,
		Role:        d.Role,
		Type:        d.Type,
		Level:       d.Level,
		TechStack:   d.TechStack,
		Questions:   d.Questions,
		Status:      model.InterviewStatus(d.Status),
		Finalized:   d.Finalized,
		CoverImage:  d.CoverImage,
		CreatedAt:   parseDocTime(d.CreatedAt),
		UpdatedAt:   parseDocTime(d.UpdatedAt),
		CompletedAt: parseDocTime(d.CompletedAt),
	}
	for _, t := range d.Transcript {
		i.Transcript = append(i.Transcript, model.TranscriptEntry{Role: t.Role, Content: t.Content})
	}
	return i
}

func newFeedbackDoc(f *model.Feedback) *feedbackDoc {
	doc := &feedbackDoc{
		InterviewID:         f.InterviewID,
		UserID:              f.UserID,
		TotalScore:          f.TotalScore,
		CategoryScores:      make([]categoryScoreDoc, 0, len(f.CategoryScores)),
		Strengths:           nonNilStrings(f.Strengths),
		AreasForImprovement: nonNilStrings(f.AreasForImprovement),
		FinalAssessment:     f.FinalAssessment,
		CreatedAt:           formatDocTime(f.CreatedAt),
	}
	for _, c := range f.CategoryScores {
		doc.CategoryScores = append(doc.CategoryScores, categoryScoreDoc{Name: c.Name, Score: c.Score, Comment: c.Comment})
	}
	return doc
}

func (d *feedbackDoc) toModel(id string) *model.Feedback {
	f := &model.Feedback{
		ID:                  id,
		InterviewID:         d.InterviewID,
		UserID:              d.UserID,
		TotalScore:          d.TotalScore,
		Strengths:           d.Strengths,
		AreasForImprovement: d.AreasForImprovement,
		FinalAssessment:     d.FinalAssessment,
	}
	for _, c := range d.CategoryScores {
		f.CategoryScores = append(f.CategoryScores, model.CategoryScore{Name: c.Name, Score: c.Score, Comment: c.Comment})
	}
	if t := parseDocTime(d.CreatedAt); t != nil {
		f.CreatedAt = *t
	}
	return f
}
