// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー名や面接の文字起こしなど、プレーンテキストとして
// 保存・表示される入力からHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去したうえでエンティティを元に戻すため、
// "&" や "<" を含む通常の文章はそのまま保たれる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/prepwise/internal/model"
)

// TextSanitizer はプレーンテキストのサニタイズ機能を提供する。
// ポリシーは読み取り専用のため複数goroutineから安全に利用できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を取り除いたテキストを返す。
func (s *TextSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// SanitizeTranscript は文字起こしの各発話をサニタイズした新しいスライスを返す。
// 入力スライスは変更しない。
func (s *TextSanitizer) SanitizeTranscript(entries []model.TranscriptEntry) []model.TranscriptEntry {
	if entries == nil {
		return nil
	}
	out := make([]model.TranscriptEntry, len(entries))
	for i, e := range entries {
		out[i] = model.TranscriptEntry{
			Role:    s.Sanitize(e.Role),
			Content: s.Sanitize(e.Content),
		}
	}
	return out
}
