package model

import "time"

// InterviewStatus は面接の進行状態を表す。
type InterviewStatus string

const (
	// InterviewStatusPending は文字起こしが未保存の面接。
	InterviewStatusPending InterviewStatus = "pending"
	// InterviewStatusCompleted は文字起こしが保存済みの面接。
	InterviewStatusCompleted InterviewStatus = "completed"
)

// 自動生成面接のプレースホルダー値
const (
	DefaultInterviewRole       = "AI Generated Interview"
	DefaultInterviewType       = "Mixed"
	DefaultInterviewLevel      = "Intermediate"
	DefaultInterviewCoverImage = "/pattern.png"
)

// TranscriptEntry は面接の文字起こし1発話分を表す。
type TranscriptEntry struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content"`
}

// Interview は模擬面接のドキュメントを表す。
// タイムスタンプは既存データに欠損があり得るためポインタで保持する。
type Interview struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Role        string            `json:"role"`
	Type        string            `json:"type"`
	Level       string            `json:"level"`
	TechStack   []string          `json:"techstack"`
	Questions   []string          `json:"questions"`
	Status      InterviewStatus   `json:"status"`
	Finalized   bool              `json:"finalized"`
	CoverImage  string            `json:"coverImage,omitempty"`
	Transcript  []TranscriptEntry `json:"transcript,omitempty"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time        `json:"updatedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// CreatedAtOrZero はCreatedAtを返す。未設定の場合はUNIXエポックを返す。
func (i *Interview) CreatedAtOrZero() time.Time {
	if i.CreatedAt == nil {
		return time.Unix(0, 0).UTC()
	}
	return *i.CreatedAt
}

// InterviewCompletion は面接完了時にマージ書き込みされるフィールド。
type InterviewCompletion struct {
	UserID      string
	Transcript  []TranscriptEntry
	CompletedAt time.Time
}
