package model

import "time"

// FeedbackCategories は採点カテゴリの固定セット。順序も固定とする。
var FeedbackCategories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural Fit",
	"Confidence and Clarity",
}

// CategoryScore はカテゴリ別の採点結果を表す。
type CategoryScore struct {
	Name    string `json:"name" validate:"required,feedback_category"`
	Score   int    `json:"score" validate:"min=0,max=100"`
	Comment string `json:"comment"`
}

// FeedbackAssessment は生成AIが返す採点結果。
// Feedbackドキュメントのうち、生成対象のフィールドのみを持つ。
type FeedbackAssessment struct {
	TotalScore          int             `json:"totalScore" validate:"min=0,max=100"`
	CategoryScores      []CategoryScore `json:"categoryScores" validate:"len=5,unique=Name,dive"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment" validate:"required"`
}

// Feedback は面接に対するフィードバックのドキュメントを表す。
type Feedback struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interviewId"`
	UserID              string          `json:"userId"`
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
	CreatedAt           time.Time       `json:"createdAt"`
}
