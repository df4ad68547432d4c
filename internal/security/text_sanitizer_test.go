package security

import (
	"testing"

	"github.com/hitoshi/prepwise/internal/model"
)

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"プレーンテキストはそのまま", "Alice Smith", "Alice Smith"},
		{"前後の空白を除去", "  Bob  ", "Bob"},
		{"scriptタグを除去", `<script>alert(1)</script>Carol`, "Carol"},
		{"装飾タグを除去して本文を残す", "<b>Dave</b>", "Dave"},
		{"アンパサンドを保持", "Tom & Jerry", "Tom & Jerry"},
		{"比較演算子を含む文章", "use a < b when sorting", "use a < b when sorting"},
		{"on属性付きタグ", `<img src=x onerror="alert(1)">Eve`, "Eve"},
		{"日本語", "山田 太郎", "山田 太郎"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 同一入力に対して常に同一出力を返す
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<p>I used <code>map[string]int</code> & it worked</p>`

	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("not idempotent: %q -> %q", first, second)
	}
}

func TestTextSanitizer_SanitizeTranscript(t *testing.T) {
	s := NewTextSanitizer()
	in := []model.TranscriptEntry{
		{Role: "user", Content: "<i>Hello</i>"},
		{Role: "assistant", Content: "Tell me about yourself."},
	}

	out := s.SanitizeTranscript(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Content != "Hello" {
		t.Errorf("out[0].Content = %q, want %q", out[0].Content, "Hello")
	}
	if in[0].Content != "<i>Hello</i>" {
		t.Error("入力スライスが変更されている")
	}
	if s.SanitizeTranscript(nil) != nil {
		t.Error("nil入力はnilを返すべき")
	}
}
