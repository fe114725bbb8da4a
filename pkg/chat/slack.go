package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/overlord/pkg/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackAdapter implements Adapter over a Slack app in Socket Mode.
type SlackAdapter struct {
	client     *slack.Client
	socket     *socketmode.Client
	channelID  string
	handlers   Handlers
	botUserID  string

	mu       sync.Mutex
	replied  map[string]bool // thread_ref -> question already answered
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewSlackAdapter builds a SlackAdapter authenticated with botToken
// (xoxb-...) and appToken (xapp-...), restricted to channelID.
func NewSlackAdapter(botToken, appToken, channelID string, handlers Handlers) *SlackAdapter {
	client := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &SlackAdapter{
		client:    client,
		socket:    socketmode.New(client),
		channelID: channelID,
		handlers:  handlers,
		replied:   make(map[string]bool),
	}
}

// Start implements Adapter. It blocks until ctx is cancelled or Stop is called.
func (a *SlackAdapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	auth, err := a.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("chat: slack auth test failed: %w", err)
	}
	a.botUserID = auth.UserID
	log.Logger.Info().Str("bot_user_id", a.botUserID).Msg("connected to slack")

	go a.dispatchEvents(ctx)
	return a.socket.RunContext(ctx)
}

// Stop implements Adapter.
func (a *SlackAdapter) Stop() error {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
	})
	return nil
}

func (a *SlackAdapter) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.handleEvent(ctx, evt)
		}
	}
}

func (a *SlackAdapter) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting, socketmode.EventTypeConnected, socketmode.EventTypeHello:
		return
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(ctx, apiEvent)
	}
}

func (a *SlackAdapter) handleEventsAPI(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	inner, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if ok {
		a.handleMessage(ctx, inner)
		return
	}
	if mention, ok := apiEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
		a.handleMention(ctx, mention)
	}
}

func (a *SlackAdapter) handleMessage(ctx context.Context, evt *slackevents.MessageEvent) {
	// Ignore the bot's own messages and other bot traffic.
	if evt.BotID != "" || evt.User == a.botUserID {
		return
	}

	text := strings.TrimSpace(evt.Text)
	if text == "" {
		return
	}

	// Thread reply: check against the Pending-Question Registry first.
	if evt.ThreadTimeStamp != "" && evt.ThreadTimeStamp != evt.TimeStamp {
		a.handleThreadReply(ctx, evt.ThreadTimeStamp, text)
		return
	}

	if evt.Channel != a.channelID {
		return
	}

	a.handleChannelText(ctx, text, evt.TimeStamp)
}

func (a *SlackAdapter) handleMention(ctx context.Context, evt *slackevents.AppMentionEvent) {
	text := strings.TrimSpace(evt.Text)
	if idx := strings.Index(text, " "); idx >= 0 {
		text = strings.TrimSpace(text[idx+1:])
	} else {
		text = ""
	}
	a.handleChannelText(ctx, text, evt.TimeStamp)
}

func (a *SlackAdapter) handleChannelText(ctx context.Context, text, ts string) {
	if strings.EqualFold(text, "ping") {
		_, _, err := a.client.PostMessageContext(ctx, a.channelID, slack.MsgOptionText("pong", false))
		if err != nil {
			log.Logger.Warn().Err(err).Msg("failed to post pong")
		}
		return
	}

	if a.handlers.OnCommand == nil {
		return
	}
	response := a.handlers.OnCommand(ctx, text)
	if response == "" {
		return
	}
	if _, err := a.Post(ctx, response, ""); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to post command response")
	}
}

func (a *SlackAdapter) handleThreadReply(ctx context.Context, threadRef, text string) {
	a.mu.Lock()
	if a.replied[threadRef] {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	if a.handlers.OnThreadReply == nil {
		return
	}
	a.handlers.OnThreadReply(ctx, threadRef, text)

	a.mu.Lock()
	a.replied[threadRef] = true
	a.mu.Unlock()
}

// Post implements Adapter.
func (a *SlackAdapter) Post(ctx context.Context, text, threadRef string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadRef != "" {
		opts = append(opts, slack.MsgOptionTS(threadRef))
	}
	_, ts, err := a.client.PostMessageContext(ctx, a.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat: post failed: %w", err)
	}
	return ts, nil
}

// PostQuestion implements Adapter.
func (a *SlackAdapter) PostQuestion(ctx context.Context, minionID string, issue int, text string) (string, error) {
	msg := fmt.Sprintf("Minion `%s` on #%d needs input:\n> %s", minionID, issue, text)
	threadRef, err := a.Post(ctx, msg, "")
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.replied[threadRef] = false
	a.mu.Unlock()
	return threadRef, nil
}

// ThreadHistory implements Adapter, returning human-authored replies only.
func (a *SlackAdapter) ThreadHistory(ctx context.Context, threadRef string) ([]string, error) {
	resp, _, _, err := a.client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: a.channelID,
		Timestamp: threadRef,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: thread history failed: %w", err)
	}
	var out []string
	for _, msg := range resp {
		if msg.BotID != "" || msg.User == a.botUserID || msg.TimeStamp == threadRef {
			continue
		}
		out = append(out, msg.Text)
	}
	return out, nil
}
