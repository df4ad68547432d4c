package feedback

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hitoshi/prepwise/internal/model"
)

// DefaultModel はフィードバック生成に使うGeminiモデル。
const DefaultModel = "gemini-2.0-flash-001"

const systemInstruction = "You are a professional interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories"

const promptTemplate = `You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s

Please score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
- **Communication Skills**: Clarity, articulation, structured responses.
- **Technical Knowledge**: Understanding of key concepts for the role.
- **Problem-Solving**: Ability to analyze problems and propose solutions.
- **Cultural & Role Fit**: Alignment with company values and job role.
- **Confidence & Clarity**: Confidence in responses, engagement, and clarity.
`

// Generator は整形済みの文字起こしから採点結果を生成する。
type Generator interface {
	Generate(ctx context.Context, formattedTranscript string) (*model.FeedbackAssessment, error)
}

// JSONGenerator は構造化JSON出力を返す生成AIクライアントのインターフェース。
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error
}

// GeminiGenerator はGeminiの構造化出力で採点結果を生成する。
type GeminiGenerator struct {
	client JSONGenerator
	schema *genai.Schema
}

// NewGeminiGenerator はGeminiGeneratorを生成する。
func NewGeminiGenerator(client JSONGenerator) *GeminiGenerator {
	return &GeminiGenerator{
		client: client,
		schema: AssessmentSchema(),
	}
}

// Generate は採点結果を生成する。出力の妥当性検証は呼び出し側で行う。
func (g *GeminiGenerator) Generate(ctx context.Context, formattedTranscript string) (*model.FeedbackAssessment, error) {
	var out model.FeedbackAssessment
	prompt := fmt.Sprintf(promptTemplate, formattedTranscript)
	if err := g.client.GenerateJSON(ctx, systemInstruction, prompt, g.schema, &out); err != nil {
		return nil, fmt.Errorf("フィードバックの生成に失敗しました: %w", err)
	}
	return &out, nil
}

// FormatTranscript は文字起こしを "- role: content\n" 形式の行に整形する。
func FormatTranscript(transcript []model.TranscriptEntry) string {
	var b strings.Builder
	for _, e := range transcript {
		fmt.Fprintf(&b, "- %s: %s\n", e.Role, e.Content)
	}
	return b.String()
}

// AssessmentSchema は採点結果のresponseSchemaを返す。
// カテゴリ名は固定の5種を列挙で強制する。
func AssessmentSchema() *genai.Schema {
	categoryCount := int64(len(model.FeedbackCategories))
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"totalScore": {Type: genai.TypeInteger, Description: "Overall score from 0 to 100"},
			"categoryScores": {
				Type:     genai.TypeArray,
				MinItems: &categoryCount,
				MaxItems: &categoryCount,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":    {Type: genai.TypeString, Enum: model.FeedbackCategories},
						"score":   {Type: genai.TypeInteger, Description: "Score from 0 to 100"},
						"comment": {Type: genai.TypeString},
					},
					Required: []string{"name", "score", "comment"},
				},
			},
			"strengths":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"areasForImprovement": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"finalAssessment":     {Type: genai.TypeString},
		},
		Required: []string{"totalScore", "categoryScores", "strengths", "areasForImprovement", "finalAssessment"},
	}
}
