package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pedroavv1914/zappi-chatbot/internal/chat"
)

// --- Mock Discord session ---

type mockSession struct {
	mu           sync.Mutex
	opened       bool
	closeCalled  bool
	openErr      error
	sentMessages []sentMessage
	sendErr      error
	handlers     []interface{}
	removeCount  int
}

type sentMessage struct {
	channelID string
	content   string
}

func newMockSession() *mockSession {
	return &mockSession{}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sentMessages = append(m.sentMessages, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "msg-123"}, nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.removeCount++
	}
}

// emit invokes every registered handler matching the event type.
func (m *mockSession) emit(event interface{}) {
	m.mu.Lock()
	handlers := append([]interface{}(nil), m.handlers...)
	m.mu.Unlock()
	for _, h := range handlers {
		switch ev := event.(type) {
		case *discordgo.MessageCreate:
			if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
				fn(nil, ev)
			}
		case *discordgo.Ready:
			if fn, ok := h.(func(*discordgo.Session, *discordgo.Ready)); ok {
				fn(nil, ev)
			}
		}
	}
}

func (m *mockSession) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sentMessages)
}

func (m *mockSession) lastSent() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sentMessages[len(m.sentMessages)-1]
}

// --- Helpers ---

func newTestAdapter(t *testing.T) (*Adapter, *mockSession) {
	t.Helper()
	sess := newMockSession()

	a, err := New(AdapterOpts{Session: sess})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	a.SetBotUserID("BOT_USER_ID")
	t.Cleanup(func() { a.Close() })
	return a, sess
}

func dm(author *discordgo.User, channelID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "1234567890123456789",
		ChannelID: channelID,
		Content:   content,
		Author:    author,
	}}
}

func expectNoMessage(t *testing.T, ch <-chan chat.InboundMessage) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected inbound message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

// --- New / Connect ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(AdapterOpts{})
	if err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Fatalf("err = %v, want bot token error", err)
	}
}

func TestNew_WithBotToken(t *testing.T) {
	a, err := New(AdapterOpts{BotToken: "test-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.botToken != "test-token" {
		t.Errorf("bot token = %q", a.botToken)
	}
}

func TestConnect_Success(t *testing.T) {
	_, sess := newTestAdapter(t)
	if !sess.opened {
		t.Error("session should be opened")
	}
}

func TestConnect_OpenError(t *testing.T) {
	sess := newMockSession()
	sess.openErr = fmt.Errorf("websocket dial failed")
	a, _ := New(AdapterOpts{Session: sess})

	err := a.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "open gateway") {
		t.Fatalf("err = %v, want open gateway error", err)
	}
	if errors.Is(err, chat.ErrCredentialsInvalidated) {
		t.Error("transient error must not be classified as invalidated credentials")
	}
}

func TestConnect_Unauthorized(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rest 401", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}},
		{"gateway 4004", errors.New("websocket: close 4004: Authentication failed.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newMockSession()
			sess.openErr = tt.err
			a, _ := New(AdapterOpts{Session: sess})

			err := a.Connect(context.Background())
			if !errors.Is(err, chat.ErrCredentialsInvalidated) {
				t.Errorf("err = %v, want ErrCredentialsInvalidated", err)
			}
		})
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Session: newMockSession()})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting closed adapter")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("second connect: %v", err)
	}
}

func TestConnect_ReadyHandlerSetsBotUserID(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.emit(&discordgo.Ready{User: &discordgo.User{ID: "BOT_FROM_READY", Username: "zappi"}})
	if a.BotUserID() != "BOT_FROM_READY" {
		t.Errorf("bot user ID = %q, want BOT_FROM_READY", a.BotUserID())
	}
}

// --- Listen ---

func TestListen_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Session: newMockSession()})
	if _, err := a.Listen(context.Background()); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestListen_ReceivesDirectMessages(t *testing.T) {
	a, sess := newTestAdapter(t)
	ch, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	sess.emit(dm(&discordgo.User{ID: "U_ALICE", Username: "alice"}, "DM_ALICE", "oi"))

	select {
	case msg := <-ch:
		if msg.Platform != "discord" {
			t.Errorf("platform = %q, want discord", msg.Platform)
		}
		if msg.Sender != "DM_ALICE" {
			t.Errorf("sender = %q, want DM_ALICE", msg.Sender)
		}
		if msg.UserName != "alice" {
			t.Errorf("user name = %q, want alice", msg.UserName)
		}
		if msg.Text != "oi" {
			t.Errorf("text = %q, want oi", msg.Text)
		}
		if msg.Timestamp.IsZero() {
			t.Error("timestamp should be derived from the snowflake")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestListen_FiltersMessages(t *testing.T) {
	a, sess := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())

	guild := dm(&discordgo.User{ID: "U_ALICE"}, "C_GUILD", "hello")
	guild.GuildID = "G1"

	sess.emit(guild)
	sess.emit(dm(&discordgo.User{ID: "BOT_USER_ID"}, "DM1", "echo"))
	sess.emit(dm(&discordgo.User{ID: "U_OTHER_BOT", Bot: true}, "DM1", "bot"))
	sess.emit(&discordgo.MessageCreate{Message: &discordgo.Message{ChannelID: "DM1", Content: "no author"}})

	expectNoMessage(t, ch)
}

func TestListen_ContextCancelClosesInbound(t *testing.T) {
	a, sess := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := a.Listen(ctx)

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound to close")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.closeCalled {
		t.Error("session should be closed")
	}
}

func TestHandleMessage_AfterCloseIsDropped(t *testing.T) {
	a, sess := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())
	a.Close()

	// Must not panic on a closed channel.
	sess.emit(dm(&discordgo.User{ID: "U_ALICE"}, "DM1", "late"))

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}

// --- Send ---

func TestSend_ToDMChannel(t *testing.T) {
	a, sess := newTestAdapter(t)
	err := a.Send(context.Background(), chat.OutboundMessage{To: "DM_ALICE", Text: "Olá"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sess.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", sess.sentCount())
	}
	got := sess.lastSent()
	if got.channelID != "DM_ALICE" || got.content != "Olá" {
		t.Errorf("sent = %+v", got)
	}
}

func TestSend_NoChannel(t *testing.T) {
	a, _ := newTestAdapter(t)
	err := a.Send(context.Background(), chat.OutboundMessage{Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "no channel") {
		t.Fatalf("err = %v, want no channel", err)
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Session: newMockSession()})
	if err := a.Send(context.Background(), chat.OutboundMessage{To: "DM1", Text: "hello"}); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_PostError(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.sendErr = fmt.Errorf("missing access")

	err := a.Send(context.Background(), chat.OutboundMessage{To: "DM1", Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "send message") {
		t.Fatalf("err = %v, want send message error", err)
	}
	if a.Err() != nil {
		t.Errorf("Err() = %v, want nil for an ordinary failure", a.Err())
	}
}

func TestSend_UnauthorizedClosesAdapter(t *testing.T) {
	a, sess := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())
	sess.sendErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}

	err := a.Send(context.Background(), chat.OutboundMessage{To: "DM1", Text: "hello"})
	if !errors.Is(err, chat.ErrCredentialsInvalidated) {
		t.Fatalf("err = %v, want ErrCredentialsInvalidated", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected inbound to close")
	}
	if !errors.Is(a.Err(), chat.ErrCredentialsInvalidated) {
		t.Errorf("Err() = %v, want ErrCredentialsInvalidated", a.Err())
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, sess := newTestAdapter(t)
	a.baseBackoff = 10 * time.Millisecond
	sess.sendErr = rateLimited()

	go func() {
		time.Sleep(5 * time.Millisecond)
		sess.mu.Lock()
		sess.sendErr = nil
		sess.mu.Unlock()
	}()

	if err := a.Send(context.Background(), chat.OutboundMessage{To: "DM1", Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sess.sentCount() != 1 {
		t.Errorf("sent = %d, want 1", sess.sentCount())
	}
}

// --- Close ---

func TestClose_Idempotent(t *testing.T) {
	a, sess := newTestAdapter(t)
	a.Listen(context.Background())
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removeCount != 1 {
		t.Errorf("remove handler calls = %d, want 1", sess.removeCount)
	}
}

// --- retryOnRateLimit ---

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	a, _ := newTestAdapter(t)
	calls := 0
	err := a.retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("some other error")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v calls = %d, want error after 1 call", err, calls)
	}
}

func TestRetryOnRateLimit_ExhaustsRetries(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.baseBackoff = time.Millisecond
	a.maxBackoff = 10 * time.Millisecond

	calls := 0
	err := a.retryOnRateLimit(context.Background(), func() error {
		calls++
		return rateLimited()
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != maxRetries+1 {
		t.Errorf("expected %d calls, got %d", maxRetries+1, calls)
	}
}

func TestRetryOnRateLimit_RespectsContext(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.baseBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := a.retryOnRateLimit(ctx, func() error {
		calls++
		return rateLimited()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before context cancel, got %d", calls)
	}
}

var (
	_ chat.Adapter = (*Adapter)(nil)
	_ chat.Exiter  = (*Adapter)(nil)
)
