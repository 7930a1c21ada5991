package telegram

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"echo-grade/api/internal/grade/types"
	"echo-grade/api/internal/util"
)

// maxMessage keeps replies under Telegram's 4096 character limit.
const maxMessage = 3900

const (
	maxPart     = 1200
	maxEquation = 200
)

const cbCancel = "compare_cancel"

func makeCancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(btn))
}

func (r *Router) ask(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = makeCancelKeyboard()
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram send chat=%d: %v", chatID, err)
	}
}

// formatResult renders one graded answer as Markdown.
func formatResult(res types.AnalysisResult) string {
	return render(res, markdown{})
}

// formatPlain renders the same reply without any markup.
func formatPlain(res types.AnalysisResult) string {
	return render(res, plain{})
}

type markup interface {
	bold(s string) string
	italic(s string) string
	code(s string) string
	text(s string) string
}

type markdown struct{}

func (markdown) bold(s string) string   { return "*" + s + "*" }
func (markdown) italic(s string) string { return "_" + s + "_" }
func (markdown) code(s string) string   { return "`" + strings.ReplaceAll(s, "`", "'") + "`" }
func (markdown) text(s string) string   { return esc(s) }

type plain struct{}

func (plain) bold(s string) string   { return s }
func (plain) italic(s string) string { return s }
func (plain) code(s string) string   { return s }
func (plain) text(s string) string   { return s }

// render clips free text before marking it up so entities stay whole.
func render(res types.AnalysisResult, m markup) string {
	var b strings.Builder
	d := res.Details
	if d != nil {
		fmt.Fprintf(&b, "%s (%s)\n", m.bold(fmt.Sprintf("Score: %.1f/10", d.ScoreOutOf10)), m.text(d.Verdict))
	} else {
		fmt.Fprintf(&b, "%s\n", m.bold(fmt.Sprintf("Score: %.2f", res.FinalScore)))
	}
	if res.StudentID != "" && res.StudentID != "student" {
		fmt.Fprintf(&b, "Student: %s\n", m.text(clipPart(res.StudentID)))
	}
	fmt.Fprintf(&b, "Equations %.2f · SBERT %.2f · E5 %.2f\n",
		res.Scores.EquationScore, res.Scores.SBERTScore, res.Scores.E5Score)

	if d == nil {
		b.WriteString("\n")
		b.WriteString(m.text(clipPart(res.Feedback)))
	} else {
		if c := strings.TrimSpace(d.Comment); c != "" {
			b.WriteString("\n")
			b.WriteString(m.text(clipPart(c)))
			b.WriteString("\n")
		}
		if len(d.UnmatchedEquations) > 0 {
			b.WriteString("\nMissing equations:\n")
			for _, eq := range d.UnmatchedEquations {
				b.WriteString(m.code(util.ClampRunes(eq, maxEquation)))
				b.WriteString("\n")
			}
		}
		if a := strings.TrimSpace(d.Advice); a != "" {
			b.WriteString("\nAdvice: ")
			b.WriteString(m.text(clipPart(a)))
			b.WriteString("\n")
		}
	}
	if res.Degraded {
		b.WriteString("\n")
		b.WriteString(m.italic("Some checks fell back to a plain comparison."))
	}
	return clip(b.String())
}

// clipPart caps one free-text field so several of them still fit a message.
func clipPart(s string) string {
	if c := util.ClampRunes(s, maxPart); c != s {
		return c + "…"
	}
	return s
}

func clip(s string) string {
	if c := util.ClampRunes(s, maxMessage); c != s {
		return c + "…"
	}
	return s
}

// esc escapes the legacy Markdown control characters.
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}
