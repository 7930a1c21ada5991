package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"echo-grade/api/internal/grade/pipeline"
	"echo-grade/api/internal/grade/types"
)

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Grader interface {
	Analyze(ctx context.Context, questionID, userID string) (types.QuestionReport, error)
	Compare(ctx context.Context, master, student string) (types.AnalysisResult, error)
}

type AnswerWriter interface {
	SaveStudentAnswer(ctx context.Context, a types.Answer) (int64, error)
	SaveMasterAnswer(ctx context.Context, questionID, text string) error
}

type Router struct {
	Bot     Sender
	Grader  Grader
	Answers AnswerWriter // nil when the bot runs without a database
	Timeout time.Duration

	sessions sync.Map // chatID -> *compareSession
}

const helpText = "Send answers, get them graded against the reference.\n" +
	"Commands:\n" +
	"/grade <questionId> <userId> grade stored answers\n" +
	"/compare master text, a line ---, then the student text\n" +
	"/compare alone walks you through both texts\n" +
	"/submit <questionId> <answer> store your answer\n" +
	"/master <questionId> <answer> store the reference answer\n" +
	"/cancel, /health"

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	ctx = pipeline.WithRequestID(ctx, "tg-"+uuid.NewString())
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd.Message)
		return
	}
	cid := upd.Message.Chat.ID
	if s := r.session(cid); s != nil && upd.Message.Text != "" {
		r.continueCompare(ctx, cid, s, upd.Message.Text)
		return
	}
	r.send(cid, "Use /compare or /grade. /start lists the commands.")
}

func (r *Router) HandleCommand(ctx context.Context, m *tgbotapi.Message) {
	cid := m.Chat.ID
	args := strings.TrimSpace(m.CommandArguments())
	switch m.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "cancel":
		r.clearSession(cid)
		r.send(cid, "Cancelled.")
	case "grade":
		f := strings.Fields(args)
		if len(f) != 2 {
			r.send(cid, "Usage: /grade <questionId> <userId>")
			return
		}
		r.grade(ctx, cid, f[0], f[1])
	case "compare":
		r.startCompare(ctx, cid, args)
	case "submit":
		q, text := splitFirst(args)
		if q == "" || text == "" {
			r.send(cid, "Usage: /submit <questionId> <answer>")
			return
		}
		r.submit(ctx, cid, q, userID(m), text)
	case "master":
		q, text := splitFirst(args)
		if q == "" || text == "" {
			r.send(cid, "Usage: /master <questionId> <answer>")
			return
		}
		r.saveMaster(ctx, cid, q, text)
	default:
		r.send(cid, "Unknown command. /start lists the commands.")
	}
}

func (r *Router) grade(ctx context.Context, chatID int64, questionID, uid string) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()

	report, err := r.Grader.Analyze(ctx, questionID, uid)
	if err != nil {
		r.SendError(ctx, chatID, err)
		return
	}
	for _, res := range report.Results {
		r.SendResult(chatID, res)
	}
}

func (r *Router) compare(ctx context.Context, chatID int64, master, student string) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()

	res, err := r.Grader.Compare(ctx, master, student)
	if err != nil {
		r.SendError(ctx, chatID, err)
		return
	}
	r.SendResult(chatID, res)
}

func (r *Router) submit(ctx context.Context, chatID int64, questionID, uid, text string) {
	if r.Answers == nil {
		r.send(chatID, "Answer storage is not configured.")
		return
	}
	id, err := r.Answers.SaveStudentAnswer(ctx, types.Answer{QuestionID: questionID, AuthorID: uid, Text: text})
	if err != nil {
		log.Printf("[%s] telegram submit %s/%s: %v", pipeline.RequestID(ctx), questionID, uid, err)
		r.send(chatID, "Could not store the answer, try again later.")
		return
	}
	r.send(chatID, fmt.Sprintf("Stored answer #%d for %s. Grade it with /grade %s %s", id, questionID, questionID, uid))
}

func (r *Router) saveMaster(ctx context.Context, chatID int64, questionID, text string) {
	if r.Answers == nil {
		r.send(chatID, "Answer storage is not configured.")
		return
	}
	if err := r.Answers.SaveMasterAnswer(ctx, questionID, text); err != nil {
		log.Printf("[%s] telegram master %s: %v", pipeline.RequestID(ctx), questionID, err)
		r.send(chatID, "Could not store the reference answer, try again later.")
		return
	}
	r.send(chatID, "Reference answer for "+questionID+" saved.")
}

func (r *Router) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	d := r.Timeout
	if d <= 0 {
		d = 180 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram send chat=%d: %v", chatID, err)
	}
}

func (r *Router) SendResult(chatID int64, res types.AnalysisResult) {
	msg := tgbotapi.NewMessage(chatID, formatResult(res))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram send chat=%d: %v; retrying as plain text", chatID, err)
		r.send(chatID, formatPlain(res))
	}
}

func (r *Router) SendError(ctx context.Context, chatID int64, err error) {
	log.Printf("[%s] telegram chat=%d: %v", pipeline.RequestID(ctx), chatID, err)
	switch {
	case errors.Is(err, types.ErrNotFound):
		r.send(chatID, pipeline.Report(err).Error)
	case errors.Is(err, context.DeadlineExceeded):
		r.send(chatID, "Grading took too long, try again later.")
	case errors.Is(err, types.ErrExtraction):
		r.send(chatID, "Could not read the equations in one of the answers, try again later.")
	default:
		r.send(chatID, "Grading failed: "+err.Error())
	}
}

// splitFirst splits "id rest of text" into the first word and the rest.
func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func userID(m *tgbotapi.Message) string {
	if m.From != nil {
		return "tg:" + strconv.FormatInt(m.From.ID, 10)
	}
	return "tg:" + strconv.FormatInt(m.Chat.ID, 10)
}
