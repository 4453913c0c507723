// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はセッション名・説明文などの利用者入力からマークアップを除去する。
// bluemondayのStrictPolicyを使用し、すべてのタグを取り除いてテキストのみを残す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はタグを除去したプレーンテキストを返す。
	// 前後の空白は取り除く。エスケープされたタグも復元後に除去する。
	Sanitize(raw string) string
}

// TextSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため、1インスタンスを共有してよい。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はエスケープの入れ子を剥がす回数の上限。
const maxSanitizePasses = 8

// Sanitize はタグを除去したプレーンテキストを返す。
// bluemondayはエンティティをエスケープして返すため、JSONで返す値として元の文字に戻す。
// 戻した結果が "&lt;b&gt;" 由来のタグになることがあるので、変化がなくなるまで繰り返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (s *TextSanitizer) pass(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
