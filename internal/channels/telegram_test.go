package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
)

// fakeBotAPI records Bot API calls and answers them like Telegram does.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls map[string][]url.Values
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], r.PostForm)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"remindbot","username":"remindbot"}}`)
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":%s,"type":"private"},"text":"x"}}`,
			r.PostForm.Get("chat_id"))
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeBotAPI) last(method string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestTelegram(t *testing.T, allowed []string) (*TelegramChannel, *fakeBotAPI, *bus.MessageBus) {
	t.Helper()
	api := &fakeBotAPI{calls: make(map[string][]url.Values)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	msgBus := bus.NewMessageBus(8)
	ch, err := NewTelegramChannel("TOKEN", srv.URL+"/bot%s/%s", srv.Client(), allowed, msgBus)
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	return ch, api, msgBus
}

func TestTelegramNotifyWithControl(t *testing.T) {
	ch, api, _ := newTestTelegram(t, nil)

	ref, err := ch.NotifyWithControl(context.Background(), "100", "Выпить воды", Control{Label: "Выполнено", Action: bus.ActionAcknowledge})
	if err != nil {
		t.Fatalf("NotifyWithControl: %v", err)
	}
	if ref != "100:42" {
		t.Errorf("ref = %q, want 100:42", ref)
	}

	form := api.last("sendMessage")
	if form.Get("text") != "Выпить воды" {
		t.Errorf("text = %q", form.Get("text"))
	}
	var markup tgbotapi.InlineKeyboardMarkup
	if err := json.Unmarshal([]byte(form.Get("reply_markup")), &markup); err != nil {
		t.Fatalf("reply_markup: %v", err)
	}
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("unexpected keyboard %+v", markup)
	}
	btn := markup.InlineKeyboard[0][0]
	if btn.Text != "Выполнено" || btn.CallbackData == nil || *btn.CallbackData != bus.ActionAcknowledge {
		t.Errorf("unexpected button %+v", btn)
	}
}

func TestTelegramNotifyInvalidRecipient(t *testing.T) {
	ch, _, _ := newTestTelegram(t, nil)
	if _, err := ch.Notify(context.Background(), "not-a-chat", "x"); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func TestTelegramRemoveControlAndDelete(t *testing.T) {
	ch, api, _ := newTestTelegram(t, nil)
	ctx := context.Background()

	if err := ch.RemoveControl(ctx, "100:42"); err != nil {
		t.Fatalf("RemoveControl: %v", err)
	}
	form := api.last("editMessageReplyMarkup")
	if form.Get("chat_id") != "100" || form.Get("message_id") != "42" {
		t.Errorf("unexpected edit params %v", form)
	}
	if !strings.Contains(form.Get("reply_markup"), `"inline_keyboard":[]`) {
		t.Errorf("keyboard not cleared: %q", form.Get("reply_markup"))
	}

	if err := ch.Delete(ctx, "100:43"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if form := api.last("deleteMessage"); form.Get("message_id") != "43" {
		t.Errorf("unexpected delete params %v", form)
	}

	if err := ch.Delete(ctx, "garbage"); err == nil {
		t.Error("expected error for malformed ref")
	}
}

func TestTelegramCallbackPublishesAcknowledge(t *testing.T) {
	ch, api, msgBus := newTestTelegram(t, nil)

	ch.handleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: 100}},
		Data:    bus.ActionAcknowledge,
	}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := msgBus.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if !msg.IsAcknowledge() || msg.AcknowledgedRef() != "100:42" {
		t.Errorf("unexpected inbound %+v", msg)
	}
	if msg.SenderID != "7" || msg.ChatID != "100" {
		t.Errorf("unexpected sender/chat %q/%q", msg.SenderID, msg.ChatID)
	}
	if form := api.last("answerCallbackQuery"); form.Get("callback_query_id") != "cb-1" {
		t.Errorf("callback not answered: %v", form)
	}
}

func TestTelegramReplyAndCommand(t *testing.T) {
	ch, _, msgBus := newTestTelegram(t, nil)

	ch.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID:      50,
		From:           &tgbotapi.User{ID: 7},
		Chat:           &tgbotapi.Chat{ID: 100},
		Text:           "готово",
		ReplyToMessage: &tgbotapi.Message{MessageID: 42},
	}})
	ch.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 51,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      "/start",
	}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := msgBus.ConsumeInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reply.IsAcknowledge() || reply.AcknowledgedRef() != "100:42" {
		t.Errorf("reply should acknowledge 100:42, got %+v", reply)
	}

	cmd, err := msgBus.ConsumeInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !cmd.IsCommand() || cmd.Content != "/start" {
		t.Errorf("unexpected command %+v", cmd)
	}
}

func TestTelegramDisallowedUser(t *testing.T) {
	ch, _, msgBus := newTestTelegram(t, []string{"1"})

	ch.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 100},
		Text: "/start",
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if msg, err := msgBus.ConsumeInbound(ctx); err == nil {
		t.Fatalf("disallowed user reached the bus: %+v", msg)
	}
}

func TestTelegramSend(t *testing.T) {
	ch, api, _ := newTestTelegram(t, nil)
	if err := ch.Send(bus.OutboundMessage{ChatID: "100", Content: "Привет"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if api.last("sendMessage").Get("text") != "Привет" {
		t.Error("reply not sent")
	}
	if err := ch.Send(bus.OutboundMessage{ChatID: "abc"}); err == nil {
		t.Error("expected error for invalid chat id")
	}
}
