package platform

import "strings"

// keywordRule はタイトル中のキーワードとコンテスト種別の対応。
// スライスの並び順がそのまま判定の優先順位となる。
type keywordRule struct {
	keyword     string
	contestType string
}

// classifyByKeywords はタイトルの部分一致でコンテスト種別を判定する。
// 大文字小文字は区別しない。ルールは先頭から順に評価し、
// 最初に一致したルールの種別を返す。どれにも一致しない場合はfallbackを返す。
func classifyByKeywords(title string, rules []keywordRule, fallback string) string {
	lower := strings.ToLower(title)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return r.contestType
		}
	}
	return fallback
}

// difficultyForType は種別→難易度の対応表から難易度を引く。
// 対応表にない種別には空文字列を返す。
func difficultyForType(table map[string]string, contestType string) string {
	return table[contestType]
}

// durationMinutes は秒単位の所要時間を分に変換する。
func durationMinutes(seconds int64) int {
	return int(seconds / 60)
}
