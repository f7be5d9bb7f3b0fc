package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"polytracker/clients/notifier"
	"polytracker/config"
	"polytracker/internal/domain"

	"go.uber.org/zap"
)

const getMeResponse = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Tracker","username":"tracker_bot"}}`

const sendMessageResponse = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`

// fakeBotAPI records sendMessage calls and serves one batch of updates.
type fakeBotAPI struct {
	mu      sync.Mutex
	sent    []url.Values
	updates string
	served  bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(getMeResponse))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm)
		f.mu.Unlock()
		w.Write([]byte(sendMessageResponse))
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		f.mu.Lock()
		first := !f.served
		f.served = true
		f.mu.Unlock()
		if first && f.updates != "" {
			w.Write([]byte(f.updates))
			return
		}
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(`{"ok":true,"result":[]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func (f *fakeBotAPI) messages() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.sent...)
}

func newTestClient(t *testing.T, fake *fakeBotAPI) *TelegramClient {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			BotToken:    "123:abc",
			APIEndpoint: server.URL + "/bot%s/%s",
		},
	}

	client, err := NewTelegramClient(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewTelegramClient_NoToken(t *testing.T) {
	cfg := &config.Config{}

	if _, err := NewTelegramClient(nil, cfg); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNewTelegramClient_GetMe(t *testing.T) {
	client := newTestClient(t, &fakeBotAPI{})

	if client.Username() != "tracker_bot" {
		t.Errorf("unexpected username: %s", client.Username())
	}
}

func TestNewTelegramClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			BotToken:    "bad",
			APIEndpoint: server.URL + "/bot%s/%s",
		},
	}

	if _, err := NewTelegramClient(nil, cfg); err == nil {
		t.Error("expected error for rejected token")
	}
}

func TestSendHTML(t *testing.T) {
	fake := &fakeBotAPI{}
	client := newTestClient(t, fake)

	if err := client.SendHTML(42, "<b>hello</b>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := fake.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Get("chat_id") != "42" {
		t.Errorf("unexpected chat_id: %s", sent[0].Get("chat_id"))
	}
	if sent[0].Get("text") != "<b>hello</b>" {
		t.Errorf("unexpected text: %s", sent[0].Get("text"))
	}
	if sent[0].Get("parse_mode") != "HTML" {
		t.Errorf("unexpected parse_mode: %s", sent[0].Get("parse_mode"))
	}
	if sent[0].Get("disable_web_page_preview") != "true" {
		t.Errorf("expected link previews disabled, got %q", sent[0].Get("disable_web_page_preview"))
	}
}

func TestSendHTML_SplitsLongMessages(t *testing.T) {
	fake := &fakeBotAPI{}
	client := newTestClient(t, fake)

	line := strings.Repeat("x", 99) + "\n"
	text := strings.Repeat(line, 50) // 5000 bytes

	if err := client.SendHTML(42, text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := fake.messages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].Get("text")+sent[1].Get("text") != text {
		t.Error("expected chunks to reassemble to the original text")
	}
}

func TestSendTradeAlert(t *testing.T) {
	fake := &fakeBotAPI{}
	client := newTestClient(t, fake)

	alert := notifier.TradeAlert{
		ChatID: 7,
		Label:  "whale",
		Trade: domain.Trade{
			TxHash:        "0xtx",
			WalletAddress: "0x1234567890abcdef1234567890abcdef12345678",
			Side:          domain.SideBuy,
			Outcome:       "Yes",
			Question:      "Will it rain?",
		},
	}

	if err := client.SendTradeAlert(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := fake.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Get("chat_id") != "7" {
		t.Errorf("unexpected chat_id: %s", sent[0].Get("chat_id"))
	}
	if !strings.Contains(sent[0].Get("text"), "BOUGHT Yes") {
		t.Errorf("unexpected text: %s", sent[0].Get("text"))
	}
}

func TestCommands(t *testing.T) {
	fake := &fakeBotAPI{
		updates: `{"ok":true,"result":[
			{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}},
			{"update_id":2,"message":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"},
				"text":"/watch@tracker_bot 0xabc my whale",
				"entities":[{"type":"bot_command","offset":0,"length":18}]}}
		]}`,
	}
	client := newTestClient(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := client.Commands(ctx)

	select {
	case cmd := <-commands:
		if cmd.ChatID != 42 {
			t.Errorf("unexpected chat id: %d", cmd.ChatID)
		}
		if cmd.Name != "watch" {
			t.Errorf("unexpected command: %s", cmd.Name)
		}
		if cmd.Args != "0xabc my whale" {
			t.Errorf("unexpected args: %q", cmd.Args)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command")
	}

	cancel()

	select {
	case _, ok := <-commands:
		if ok {
			t.Error("expected no further commands")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected command channel to close after cancel")
	}
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := SplitMessage("hello", 10)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessage_LineBoundaries(t *testing.T) {
	text := "aaaa\nbbbb\ncccc\n"

	chunks := SplitMessage(text, 10)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "aaaa\nbbbb\n" || chunks[1] != "cccc\n" {
		t.Errorf("unexpected chunks: %q", chunks)
	}
}

func TestSplitMessage_LongLine(t *testing.T) {
	text := strings.Repeat("é", 8) // 16 bytes

	chunks := SplitMessage(text, 5)

	if strings.Join(chunks, "") != text {
		t.Errorf("chunks do not reassemble: %q", chunks)
	}
	for _, c := range chunks {
		if len(c) > 5 {
			t.Errorf("chunk exceeds limit: %q", c)
		}
		if !strings.HasPrefix(c, "é") {
			t.Errorf("chunk split a rune: %q", c)
		}
	}
}
