// Package command turns chat commands into schedule requests and replies.
package command

import (
	"strings"
	"time"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

// Layout is the date and time format accepted by /schedule and the HTTP API.
const Layout = "2006-01-02 15:04"

// MsgUsage is the reply for a malformed /schedule command.
const MsgUsage = "Использование команды: /schedule YYYY-MM-DD HH:MM <текст сообщения, которое должно отправляться>"

// Request is a parsed schedule request.
type Request struct {
	FireAt time.Time
	Text   string
}

// Parse reads "YYYY-MM-DD HH:MM [text...]" with the time interpreted in loc.
// Text words are re-joined with single spaces. Errors are marked
// reminder.ErrValidation and carry the usage text.
func Parse(args string, loc *time.Location) (Request, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return Request{}, reminder.ValidationError(MsgUsage)
	}
	return ParseParts(fields[0], fields[1], strings.Join(fields[2:], " "), loc)
}

// ParseParts parses a date and a time given separately.
func ParseParts(date, clock, text string, loc *time.Location) (Request, error) {
	if loc == nil {
		loc = time.Local
	}
	at, err := time.ParseInLocation(Layout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return Request{}, reminder.ValidationError(MsgUsage)
	}
	return Request{FireAt: at, Text: strings.TrimSpace(text)}, nil
}

// Split separates "/name@bot args" into the lower-cased name and the rest.
// ok is false when content is not a command.
func Split(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(content[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
