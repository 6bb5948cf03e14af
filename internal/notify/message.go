package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/hitoshi/contestman/internal/model"
)

// buildReminderContent はコンテストリマインダーの件名と本文を組み立てる。
// コンテスト名とURLはアップストリーム由来のためHTML本文に入れる前にエスケープする。
// 説明文と違い、名前は取り込み時のサニタイズを通らない。
func buildReminderContent(contest *model.Contest, hoursUntil int) (title, message string) {
	title = fmt.Sprintf("【%s】%s 開始%d時間前", platformLabel(contest.Platform), contest.Name, hoursUntil)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p><strong>%s</strong> がまもなく開始します。</p>", html.EscapeString(contest.Name)))
	b.WriteString("<ul>")
	b.WriteString(fmt.Sprintf("<li>プラットフォーム: %s</li>", platformLabel(contest.Platform)))
	b.WriteString(fmt.Sprintf("<li>開始時刻: %s</li>", contest.StartTime.Format("2006-01-02 15:04 MST")))
	if contest.DurationMinutes > 0 {
		b.WriteString(fmt.Sprintf("<li>時間: %d分</li>", contest.DurationMinutes))
	}
	if contest.Difficulty != "" {
		b.WriteString(fmt.Sprintf("<li>難易度: %s</li>", contest.Difficulty))
	}
	b.WriteString("</ul>")
	if contest.URL != "" {
		b.WriteString(fmt.Sprintf(`<p><a href="%s">コンテストページへ</a></p>`, html.EscapeString(contest.URL)))
	}
	return title, b.String()
}

// buildDigestContent はダイジェストの件名と本文を組み立てる。
func buildDigestContent(frequency model.AlertFrequency, contests []*model.Contest) (title, message string) {
	switch frequency {
	case model.FrequencyWeekly:
		title = fmt.Sprintf("今週の開催予定コンテスト（%d件）", len(contests))
	default:
		title = fmt.Sprintf("本日の開催予定コンテスト（%d件）", len(contests))
	}

	var b strings.Builder
	b.WriteString("<p>購読中のプラットフォームで以下のコンテストが開催予定です。</p>")
	b.WriteString("<ul>")
	for _, c := range contests {
		b.WriteString(fmt.Sprintf(`<li><a href="%s">%s</a> — %s / %s</li>`,
			html.EscapeString(c.URL), html.EscapeString(c.Name),
			platformLabel(c.Platform), c.StartTime.Format("2006-01-02 15:04 MST")))
	}
	b.WriteString("</ul>")
	return title, b.String()
}

// platformLabel はプラットフォームの表示名を返す。
func platformLabel(p model.Platform) string {
	switch p {
	case model.PlatformCodeforces:
		return "Codeforces"
	case model.PlatformCodeChef:
		return "CodeChef"
	case model.PlatformAtCoder:
		return "AtCoder"
	case model.PlatformHackerEarth:
		return "HackerEarth"
	default:
		return string(p)
	}
}
