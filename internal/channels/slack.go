package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

func init() {
	Register("slack", newSlackChannel)
}

const slackActionBlockID = "reminder_actions"

// SlackChannel implements Channel for Slack via socket mode. Refs have the
// form "channelID:ts".
type SlackChannel struct {
	client       *slack.Client
	socketClient *socketmode.Client
	bus          *bus.MessageBus
	allowedUsers map[string]bool

	// texts keeps the body of messages carrying a button: removing the
	// button means re-posting the message without its action block.
	mu    sync.Mutex
	texts map[bus.MessageRef]string
}

func newSlackChannel(cfg *config.Config, msgBus *bus.MessageBus) (Channel, error) {
	scfg := cfg.Channels.Slack
	client := slack.New(scfg.BotToken, slack.OptionAppLevelToken(scfg.AppToken))
	return NewSlackChannel(client, scfg.AllowedUsers, msgBus), nil
}

// NewSlackChannel wraps an API client.
func NewSlackChannel(client *slack.Client, allowedUsers []string, msgBus *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		client:       client,
		socketClient: socketmode.New(client),
		bus:          msgBus,
		allowedUsers: allowList(allowedUsers),
		texts:        make(map[bus.MessageRef]string),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	go func() {
		for evt := range c.socketClient.Events {
			if evt.Request != nil {
				c.socketClient.Ack(*evt.Request)
			}
			var (
				msg bus.InboundMessage
				ok  bool
			)
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPI, isEvent := evt.Data.(slackevents.EventsAPIEvent)
				if !isEvent || eventsAPI.Type != slackevents.CallbackEvent {
					continue
				}
				inner, isMsg := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent)
				if !isMsg {
					continue
				}
				msg, ok = c.fromMessage(inner)
			case socketmode.EventTypeInteractive:
				callback, isCallback := evt.Data.(slack.InteractionCallback)
				if !isCallback {
					continue
				}
				msg, ok = c.fromInteraction(callback)
			}
			if ok {
				c.bus.PublishInbound(msg)
			}
		}
	}()
	go func() {
		if err := c.socketClient.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("slack: socket mode stopped", "error", err)
		}
	}()
	return nil
}

func (c *SlackChannel) fromMessage(inner *slackevents.MessageEvent) (bus.InboundMessage, bool) {
	// skip bot messages
	if inner.BotID != "" {
		return bus.InboundMessage{}, false
	}
	if !c.IsAllowed(inner.User) {
		slog.Warn("slack: message from disallowed user", "user", inner.User)
		return bus.InboundMessage{}, false
	}
	msg := bus.InboundMessage{
		Channel:  "slack",
		SenderID: inner.User,
		ChatID:   inner.Channel,
		Content:  inner.Text,
	}
	if inner.ThreadTimeStamp != "" && inner.ThreadTimeStamp != inner.TimeStamp {
		msg.ReplyTo = FormatRef(inner.Channel, inner.ThreadTimeStamp)
	}
	return msg, true
}

func (c *SlackChannel) fromInteraction(cb slack.InteractionCallback) (bus.InboundMessage, bool) {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return bus.InboundMessage{}, false
	}
	if !c.IsAllowed(cb.User.ID) {
		slog.Warn("slack: button press from disallowed user", "user", cb.User.ID)
		return bus.InboundMessage{}, false
	}
	ts := cb.Container.MessageTs
	if ts == "" {
		ts = cb.Message.Timestamp
	}
	return bus.InboundMessage{
		Channel:   "slack",
		SenderID:  cb.User.ID,
		ChatID:    cb.Channel.ID,
		Action:    cb.ActionCallback.BlockActions[0].ActionID,
		SourceRef: FormatRef(cb.Channel.ID, ts),
	}, true
}

func (c *SlackChannel) Stop() error { return nil }

func (c *SlackChannel) Send(msg bus.OutboundMessage) error {
	_, _, err := c.client.PostMessage(msg.ChatID, slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func (c *SlackChannel) Notify(ctx context.Context, recipient, text string) (bus.MessageRef, error) {
	channelID, ts, err := c.client.PostMessageContext(ctx, recipient, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	return FormatRef(channelID, ts), nil
}

func (c *SlackChannel) NotifyWithControl(ctx context.Context, recipient, text string, control Control) (bus.MessageRef, error) {
	button := slack.NewButtonBlockElement(control.Action, control.Action,
		slack.NewTextBlockObject(slack.PlainTextType, control.Label, false, false)).
		WithStyle(slack.StylePrimary)
	blocks := []slack.Block{
		slackTextBlock(text),
		slack.NewActionBlock(slackActionBlockID, button),
	}

	channelID, ts, err := c.client.PostMessageContext(ctx, recipient,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	ref := FormatRef(channelID, ts)
	c.mu.Lock()
	c.texts[ref] = text
	c.mu.Unlock()
	return ref, nil
}

func (c *SlackChannel) RemoveControl(ctx context.Context, ref bus.MessageRef) error {
	channelID, ts, err := ParseRef(ref)
	if err != nil {
		return err
	}
	c.mu.Lock()
	text, ok := c.texts[ref]
	delete(c.texts, ref)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	_, _, _, err = c.client.UpdateMessageContext(ctx, channelID, ts,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(slackTextBlock(text)),
	)
	if err != nil {
		return fmt.Errorf("slack: update message: %w", err)
	}
	return nil
}

func (c *SlackChannel) Delete(ctx context.Context, ref bus.MessageRef) error {
	channelID, ts, err := ParseRef(ref)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.texts, ref)
	c.mu.Unlock()

	if _, _, err := c.client.DeleteMessageContext(ctx, channelID, ts); err != nil {
		return fmt.Errorf("slack: delete message: %w", err)
	}
	return nil
}

func (c *SlackChannel) IsAllowed(senderID string) bool {
	return isAllowed(c.allowedUsers, senderID)
}

func slackTextBlock(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}
