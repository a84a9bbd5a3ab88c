// Package cli is the terminal rendition of the chat widget.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/zhouzirui/calm-companion/backend/internal/model/catalog"
	"github.com/zhouzirui/calm-companion/backend/internal/model/chat"
)

// QuickReplies are the shortcut prompts offered as /1, /2 and /3.
var QuickReplies = []string{
	"I feel overwhelmed",
	"I need some encouragement",
	"Can you give me a coping tip?",
}

// Chat is the controller surface the REPL drives.
type Chat interface {
	Start(ctx context.Context)
	Submit(ctx context.Context, text string) bool
	Clear(ctx context.Context) bool
}

// Printer renders messages as "[15:04] role: text" lines.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter writes to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Render prints one message.
func (p *Printer) Render(message chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := "you"
	if message.Role == chat.RoleBot {
		name = "companion"
	}
	fmt.Fprintf(p.out, "[%s] %s: %s\n", message.At().Format("15:04"), name, message.Text)
}

// Notice prints a line that is not part of the conversation.
func (p *Printer) Notice(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "* "+format+"\n", args...)
}

const help = "commands: /1 /2 /3 quick replies, /crisis support info, /clear history, /quit"

// Run reads lines from in until EOF, /quit or ctx is cancelled.
func Run(ctx context.Context, in io.Reader, printer *Printer, c Chat) error {
	c.Start(ctx)
	printer.Notice(help)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/help":
			printer.Notice(help)
		case line == "/clear":
			if !c.Clear(ctx) {
				printer.Notice("still replying, try again in a moment")
			}
		case line == "/crisis":
			printer.Notice("%s", catalog.CrisisMessage)
		case strings.HasPrefix(line, "/"):
			if text, ok := quickReply(line); ok {
				c.Submit(ctx, text)
			} else {
				printer.Notice("unknown command %s; %s", line, help)
			}
		default:
			c.Submit(ctx, line)
		}
	}
	return scanner.Err()
}

func quickReply(command string) (string, bool) {
	digits := strings.TrimPrefix(command, "/")
	if len(digits) != 1 {
		return "", false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > len(QuickReplies) {
		return "", false
	}
	return QuickReplies[n-1], true
}
