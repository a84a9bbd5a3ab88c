package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/calm-companion/backend/internal/analysis/support"
	clientreply "github.com/zhouzirui/calm-companion/backend/internal/client/reply"
	controller "github.com/zhouzirui/calm-companion/backend/internal/controller/chat"
	"github.com/zhouzirui/calm-companion/backend/internal/model/catalog"
	"github.com/zhouzirui/calm-companion/backend/internal/model/chat"
	"github.com/zhouzirui/calm-companion/backend/internal/service/reply"
	"github.com/zhouzirui/calm-companion/backend/internal/store/conversation"
)

type recorder struct {
	mu       sync.Mutex
	messages []chat.Message
}

func (r *recorder) Render(message chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recorder) all() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Message(nil), r.messages...)
}

type stubRemote struct {
	outcome clientreply.Outcome
	calls   int
}

func (s *stubRemote) Reply(context.Context, string) clientreply.Outcome {
	s.calls++
	return s.outcome
}

func unreachableRemote(t *testing.T) *clientreply.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return clientreply.New(url, clientreply.WithTimeout(200*time.Millisecond))
}

func newController(t *testing.T, remote controller.Replier, opts ...controller.Option) (*controller.Controller, *conversation.Store, *recorder) {
	t.Helper()
	store := conversation.NewStore(conversation.NewMemoryBackend(0), nil)
	rec := &recorder{}
	opts = append([]controller.Option{controller.WithDelay(func() time.Duration { return 0 })}, opts...)
	return controller.New(store, remote, reply.NewService(), rec, opts...), store, rec
}

func TestStartOnboardsEmptyHistory(t *testing.T) {
	ctrl, store, rec := newController(t, nil)
	ctx := context.Background()

	ctrl.Start(ctx)

	rendered := rec.all()
	onboarding := catalog.Default()[support.Onboarding][0]
	if len(rendered) != 1 || rendered[0].Role != chat.RoleBot || rendered[0].Text != onboarding {
		t.Fatalf("expected single onboarding message, got %+v", rendered)
	}
	persisted := store.Load(ctx)
	if len(persisted) != 1 || persisted[0] != rendered[0] {
		t.Fatalf("expected one persisted onboarding record, got %+v", persisted)
	}
}

func TestStartRendersExistingHistory(t *testing.T) {
	ctrl, store, rec := newController(t, nil)
	ctx := context.Background()

	existing := []chat.Message{
		{Role: chat.RoleBot, Text: "hello", Time: 1},
		{Role: chat.RoleUser, Text: "hi", Time: 2},
	}
	store.Save(ctx, existing)

	ctrl.Start(ctx)
	if got := rec.all(); !slices.Equal(got, existing) {
		t.Fatalf("expected history rendered in order, got %+v", got)
	}
	if got := store.Load(ctx); len(got) != 2 {
		t.Fatalf("start must not modify existing history, got %d", len(got))
	}
}

func TestSubmitFallsBackWhenRemoteUnavailable(t *testing.T) {
	ctrl, store, rec := newController(t, unreachableRemote(t))
	ctx := context.Background()
	ctrl.Start(ctx)
	before := len(store.Load(ctx))

	if !ctrl.Submit(ctx, "I'm so stressed and overwhelmed") {
		t.Fatal("expected submission to be accepted")
	}

	history := store.Load(ctx)
	if len(history) != before+2 {
		t.Fatalf("expected history to grow by 2, got %d -> %d", before, len(history))
	}
	user, bot := history[before], history[before+1]
	if user.Role != chat.RoleUser || user.Text != "I'm so stressed and overwhelmed" {
		t.Fatalf("unexpected user record %+v", user)
	}
	if bot.Role != chat.RoleBot || !slices.Contains(catalog.Default()[support.Overwhelmed], bot.Text) {
		t.Fatalf("expected overwhelmed reply, got %+v", bot)
	}
	if got := rec.all(); len(got) != 3 {
		t.Fatalf("expected 3 rendered messages, got %d", len(got))
	}
	if ctrl.Busy() || ctrl.State() != controller.StateIdle {
		t.Fatalf("expected idle controller, state=%s", ctrl.State())
	}
}

func TestSubmitCrisisWhenRemoteFails(t *testing.T) {
	remote := &stubRemote{outcome: clientreply.Outcome{Kind: clientreply.OutcomeError, Tag: support.General, Err: errors.New("500")}}
	ctrl, store, _ := newController(t, remote)
	ctx := context.Background()

	ctrl.Submit(ctx, "I think this is a crisis")

	history := store.Load(ctx)
	if got := history[len(history)-1]; got.Text != catalog.CrisisMessage {
		t.Fatalf("expected safety message, got %q", got.Text)
	}
	if remote.calls != 1 {
		t.Fatalf("expected one remote call, got %d", remote.calls)
	}
}

func TestSubmitUsesRemoteReplyVerbatim(t *testing.T) {
	remote := &stubRemote{outcome: clientreply.Outcome{Kind: clientreply.OutcomeOK, Reply: "from the server", Tag: support.General}}
	var states []controller.State
	ctrl, store, _ := newController(t, remote, controller.WithStateObserver(func(s controller.State) {
		states = append(states, s)
	}))
	ctx := context.Background()

	ctrl.Submit(ctx, "need a coping tip")

	history := store.Load(ctx)
	if got := history[len(history)-1].Text; got != "from the server" {
		t.Fatalf("expected remote reply, got %q", got)
	}
	want := []controller.State{
		controller.StateSending,
		controller.StateAwaitingRemote,
		controller.StateRemoteOK,
		controller.StateRendered,
		controller.StateIdle,
	}
	if !slices.Equal(states, want) {
		t.Fatalf("unexpected transitions %v", states)
	}
}

func TestSubmitTimeoutTransitions(t *testing.T) {
	remote := &stubRemote{outcome: clientreply.Outcome{Kind: clientreply.OutcomeTimeout, Err: context.DeadlineExceeded}}
	var states []controller.State
	ctrl, _, _ := newController(t, remote, controller.WithStateObserver(func(s controller.State) {
		states = append(states, s)
	}))

	ctrl.Submit(context.Background(), "hello")

	want := []controller.State{
		controller.StateSending,
		controller.StateAwaitingRemote,
		controller.StateRemoteFailed,
		controller.StateLocalFallback,
		controller.StateRendered,
		controller.StateIdle,
	}
	if !slices.Equal(states, want) {
		t.Fatalf("unexpected transitions %v", states)
	}
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	ctrl, store, rec := newController(t, nil)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		if ctrl.Submit(ctx, text) {
			t.Fatalf("expected %q to be rejected", text)
		}
	}
	if got := store.Load(ctx); len(got) != 0 {
		t.Fatalf("expected no history records, got %d", len(got))
	}
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("expected nothing rendered, got %d", len(got))
	}
}

func TestSubmitTrimsInput(t *testing.T) {
	ctrl, store, _ := newController(t, nil)
	ctx := context.Background()

	ctrl.Submit(ctx, "  hello  ")
	if got := store.Load(ctx)[0].Text; got != "hello" {
		t.Fatalf("expected trimmed text, got %q", got)
	}
}

type blockingRemote struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) Reply(context.Context, string) clientreply.Outcome {
	close(b.entered)
	<-b.release
	return clientreply.Outcome{Kind: clientreply.OutcomeOK, Reply: "done"}
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	remote := &blockingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl, store, _ := newController(t, remote)
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- ctrl.Submit(ctx, "first") }()

	<-remote.entered
	if !ctrl.Busy() {
		t.Fatal("expected controller to be busy")
	}
	if ctrl.Submit(ctx, "second") {
		t.Fatal("expected second submission to be ignored")
	}
	if ctrl.Clear(ctx) {
		t.Fatal("expected clear to be refused while busy")
	}
	close(remote.release)

	if !<-done {
		t.Fatal("expected first submission to complete")
	}
	history := store.Load(ctx)
	if len(history) != 2 || history[0].Text != "first" || history[1].Text != "done" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestClearReseedsOnboarding(t *testing.T) {
	ctrl, store, _ := newController(t, nil)
	ctx := context.Background()

	ctrl.Start(ctx)
	ctrl.Submit(ctx, "hello")
	if !ctrl.Clear(ctx) {
		t.Fatal("expected clear to succeed")
	}

	history := ctrl.History(ctx)
	if len(history) != 1 || history[0].Text != catalog.Default()[support.Onboarding][0] {
		t.Fatalf("expected fresh onboarding history, got %+v", history)
	}
	if len(store.Load(ctx)) != 1 {
		t.Fatal("expected persisted history to hold only onboarding")
	}
}

// slowClear blocks inside Clear until released.
type slowClear struct {
	*conversation.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowClear) Clear(ctx context.Context) {
	close(s.entered)
	<-s.release
	s.Store.Clear(ctx)
}

func TestSubmitIgnoredWhileClearing(t *testing.T) {
	history := &slowClear{
		Store:   conversation.NewStore(conversation.NewMemoryBackend(0), nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	ctrl := controller.New(history, nil, reply.NewService(), nil,
		controller.WithDelay(func() time.Duration { return 0 }))
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- ctrl.Clear(ctx) }()

	<-history.entered
	if ctrl.Submit(ctx, "hello") {
		t.Fatal("expected submission to be ignored while clearing")
	}
	close(history.release)

	if !<-done {
		t.Fatal("expected clear to succeed")
	}
	got := history.Load(ctx)
	if len(got) != 1 || got[0].Role != chat.RoleBot {
		t.Fatalf("expected only the onboarding message, got %+v", got)
	}
}

type countingHistory struct {
	*conversation.Store
	appends int
}

func (h *countingHistory) Append(ctx context.Context, message chat.Message) []chat.Message {
	h.appends++
	return h.Store.Append(ctx, message)
}

func TestSubmitAppendsThroughHistory(t *testing.T) {
	history := &countingHistory{Store: conversation.NewStore(conversation.NewMemoryBackend(0), nil)}
	ctrl := controller.New(history, nil, reply.NewService(), nil,
		controller.WithDelay(func() time.Duration { return 0 }))
	ctx := context.Background()

	if !ctrl.Submit(ctx, "hello") {
		t.Fatal("expected submission to be accepted")
	}
	if history.appends != 2 {
		t.Fatalf("expected user and bot messages appended, got %d appends", history.appends)
	}
	if got := history.Load(ctx); len(got) != 2 || got[0].Role != chat.RoleUser || got[1].Role != chat.RoleBot {
		t.Fatalf("unexpected history %+v", got)
	}
}

func TestSubmitUsesClock(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	ctrl, store, _ := newController(t, nil, controller.WithClock(func() time.Time { return at }))
	ctx := context.Background()

	ctrl.Submit(ctx, "hello")
	for _, msg := range store.Load(ctx) {
		if msg.Time != at.UnixMilli() {
			t.Fatalf("expected timestamp %d, got %d", at.UnixMilli(), msg.Time)
		}
	}
}

func TestReplyDelayRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := controller.ReplyDelay()
		if d < 450*time.Millisecond || d >= 1050*time.Millisecond {
			t.Fatalf("delay %s out of range", d)
		}
	}
}

func TestStateString(t *testing.T) {
	if controller.StateLocalFallback.String() != "local_fallback" {
		t.Fatalf("unexpected name %s", controller.StateLocalFallback)
	}
	if controller.State(99).String() != "unknown" {
		t.Fatal("expected unknown for out-of-range state")
	}
}
