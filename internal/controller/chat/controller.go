// Package chat drives one conversation: it persists user input, asks the
// remote reply endpoint for an answer and falls back to local classification
// whenever that call does not succeed.
package chat

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	clientreply "github.com/zhouzirui/calm-companion/backend/internal/client/reply"
	"github.com/zhouzirui/calm-companion/backend/internal/logging"
	"github.com/zhouzirui/calm-companion/backend/internal/model/chat"
	"github.com/zhouzirui/calm-companion/backend/internal/service/reply"
)

// History is the persistence the controller needs.
type History interface {
	Load(ctx context.Context) []chat.Message
	Save(ctx context.Context, history []chat.Message)
	Append(ctx context.Context, message chat.Message) []chat.Message
	Clear(ctx context.Context)
}

// Replier asks a remote service for a reply.
type Replier interface {
	Reply(ctx context.Context, text string) clientreply.Outcome
}

// Generator produces replies locally.
type Generator interface {
	Generate(text string) reply.Result
	Onboarding() string
}

// Renderer displays messages as they are produced.
type Renderer interface {
	Render(message chat.Message)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(chat.Message)

// Render calls f(message).
func (f RendererFunc) Render(message chat.Message) { f(message) }

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDelay replaces the simulated typing latency.
func WithDelay(delay func() time.Duration) Option {
	return func(c *Controller) {
		if delay != nil {
			c.delay = delay
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logging.OrNop(logger)
	}
}

// WithStateObserver is notified on every state transition.
func WithStateObserver(observe func(State)) Option {
	return func(c *Controller) {
		c.observe = observe
	}
}

// Controller orchestrates a single user's conversation. At most one reply
// is generated at a time; submissions made meanwhile are ignored.
type Controller struct {
	history  History
	remote   Replier
	local    Generator
	renderer Renderer
	logger   *zap.Logger
	now      func() time.Time
	delay    func() time.Duration
	observe  func(State)

	busy  atomic.Bool
	state atomic.Int32
}

// New wires a controller. remote may be nil, in which case every reply is
// produced locally.
func New(history History, remote Replier, local Generator, renderer Renderer, opts ...Option) *Controller {
	if renderer == nil {
		renderer = RendererFunc(func(chat.Message) {})
	}
	c := &Controller{
		history:  history,
		remote:   remote,
		local:    local,
		renderer: renderer,
		logger:   zap.NewNop(),
		now:      time.Now,
		delay:    ReplyDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReplyDelay returns a random latency between 450ms and 1050ms.
func ReplyDelay() time.Duration {
	return 450*time.Millisecond + rand.N(600*time.Millisecond)
}

// State returns the current state of the turn in progress.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports whether a reply is being produced.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Start renders the persisted history, or greets the user with the
// onboarding message when there is none.
func (c *Controller) Start(ctx context.Context) {
	history := c.history.Load(ctx)
	if len(history) == 0 {
		greeting := chat.NewMessage(chat.RoleBot, c.local.Onboarding(), c.now())
		c.renderer.Render(greeting)
		c.history.Save(ctx, []chat.Message{greeting})
		return
	}
	for _, message := range history {
		c.renderer.Render(message)
	}
}

// Submit handles one user turn. It returns false without side effects when
// text is blank or another reply is still in flight.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("submission ignored while reply in flight")
		return false
	}
	defer func() {
		c.transition(StateIdle)
		c.busy.Store(false)
	}()

	c.transition(StateSending)
	c.appendAndRender(ctx, chat.RoleUser, trimmed)

	c.wait(ctx, c.delay())

	text = c.produceReply(ctx, trimmed)
	c.appendAndRender(ctx, chat.RoleBot, text)
	c.transition(StateRendered)
	return true
}

// Clear wipes the history and starts over with the onboarding message.
func (c *Controller) Clear(ctx context.Context) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}
	defer c.busy.Store(false)

	c.history.Clear(ctx)
	c.Start(ctx)
	return true
}

// History returns the persisted conversation.
func (c *Controller) History(ctx context.Context) []chat.Message {
	return c.history.Load(ctx)
}

func (c *Controller) produceReply(ctx context.Context, text string) string {
	c.transition(StateAwaitingRemote)

	outcome := clientreply.Outcome{Kind: clientreply.OutcomeError, Err: clientreply.ErrNoEndpoint}
	if c.remote != nil {
		outcome = c.remote.Reply(ctx, text)
	}

	switch outcome.Kind {
	case clientreply.OutcomeOK:
		c.transition(StateRemoteOK)
		return outcome.Reply
	default:
		c.transition(StateRemoteFailed)
		c.logger.Debug("falling back to local reply", zap.Stringer("outcome", outcome.Kind), zap.Error(outcome.Err))
	}

	c.transition(StateLocalFallback)
	return c.local.Generate(text).Reply
}

func (c *Controller) appendAndRender(ctx context.Context, role chat.Role, text string) {
	message := chat.NewMessage(role, text, c.now())
	c.renderer.Render(message)
	c.history.Append(ctx, message)
}

func (c *Controller) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *Controller) transition(next State) {
	c.state.Store(int32(next))
	c.logger.Debug("chat state", zap.Stringer("state", next))
	if c.observe != nil {
		c.observe(next)
	}
}
