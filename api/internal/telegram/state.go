package telegram

import (
	"context"
	"strings"
	"time"
)

// sessionTTL bounds how long a chat may sit between the two /compare texts.
const sessionTTL = 30 * time.Minute

const (
	awaitMaster  = "await_master"
	awaitStudent = "await_student"
)

type compareSession struct {
	Mode    string
	Master  string
	Started time.Time
}

// separator is the line that splits master from student in one /compare message.
const separator = "---"

// splitCompare splits text on the first line that is exactly "---".
func splitCompare(text string) (master, student string, ok bool) {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == separator {
			master = strings.TrimSpace(strings.Join(lines[:i], "\n"))
			student = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return master, student, master != ""
		}
	}
	return "", "", false
}

func (r *Router) session(chatID int64) *compareSession {
	v, ok := r.sessions.Load(chatID)
	if !ok {
		return nil
	}
	s := v.(*compareSession)
	if time.Since(s.Started) > sessionTTL {
		r.sessions.Delete(chatID)
		return nil
	}
	return s
}

func (r *Router) clearSession(chatID int64) { r.sessions.Delete(chatID) }

// startCompare grades inline texts or opens a session collecting them.
func (r *Router) startCompare(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.sessions.Store(chatID, &compareSession{Mode: awaitMaster, Started: time.Now()})
		r.ask(chatID, "Send the reference (master) answer.")
		return
	}
	if master, student, ok := splitCompare(args); ok {
		r.clearSession(chatID)
		r.compare(ctx, chatID, master, student)
		return
	}
	r.sessions.Store(chatID, &compareSession{Mode: awaitStudent, Master: args, Started: time.Now()})
	r.ask(chatID, "Got the reference answer. Now send the student answer.")
}

func (r *Router) continueCompare(ctx context.Context, chatID int64, s *compareSession, text string) {
	text = strings.TrimSpace(text)
	switch s.Mode {
	case awaitMaster:
		if master, student, ok := splitCompare(text); ok {
			r.clearSession(chatID)
			r.compare(ctx, chatID, master, student)
			return
		}
		r.sessions.Store(chatID, &compareSession{Mode: awaitStudent, Master: text, Started: s.Started})
		r.ask(chatID, "Got the reference answer. Now send the student answer.")
	case awaitStudent:
		r.clearSession(chatID)
		r.compare(ctx, chatID, s.Master, text)
	default:
		r.clearSession(chatID)
	}
}
