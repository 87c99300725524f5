package channel

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// SlackChannel implements domain.Channel for Slack via Socket Mode. It is
// the secondary channel; the assistant semantics are identical to Teams,
// only the transport differs.
type SlackChannel struct {
	botToken  string
	appToken  string
	api       *slack.Client
	socketCli *socketmode.Client
	handler   domain.MessageHandler
	logger    *slog.Logger
	botUserID string
	userNames sync.Map // cache: userID -> display name
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSlackChannel creates a Slack channel.
func NewSlackChannel(botToken, appToken string, logger *slog.Logger) *SlackChannel {
	return &SlackChannel{
		botToken: botToken,
		appToken: appToken,
		logger:   logger,
	}
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	s.handler = handler
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.api = slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.socketCli = socketmode.New(s.api)

	// Fetch bot user ID for mention detection.
	authResp, err := s.api.AuthTest()
	if err != nil {
		return err
	}
	s.botUserID = authResp.UserID
	s.logger.Info("slack channel started", "bot_user_id", s.botUserID)

	go s.eventLoop()
	go func() {
		if err := s.socketCli.Run(); err != nil {
			s.logger.Error("slack socket mode error", "error", err)
		}
	}()

	return nil
}

func (s *SlackChannel) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *SlackChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	content := msg.Content
	if msg.IsError {
		content = ":warning: " + content
	}

	opts := []slack.MsgOption{slack.MsgOptionText(content, false)}
	if msg.ReplyToID != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyToID))
	}

	_, _, err := s.api.PostMessage(msg.ConversationID, opts...)
	return err
}

func (s *SlackChannel) eventLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt := <-s.socketCli.Events:
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				s.socketCli.Ack(*evt.Request)

				switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
				case *slackevents.MessageEvent:
					s.handleMessage(ev)
				}
			}
		}
	}
}

// resolveUserName returns a display name for a Slack user ID, using a cache
// to avoid repeated API calls.
func (s *SlackChannel) resolveUserName(userID string) string {
	if v, ok := s.userNames.Load(userID); ok {
		return v.(string)
	}
	info, err := s.api.GetUserInfo(userID)
	if err != nil {
		s.logger.Warn("slack: failed to resolve user name", "user_id", userID, "error", err)
		return userID // fallback to ID
	}
	name := info.RealName
	if name == "" {
		name = info.Name
	}
	s.userNames.Store(userID, name)
	return name
}

func (s *SlackChannel) handleMessage(ev *slackevents.MessageEvent) {
	// Ignore bot messages.
	if ev.User == "" || ev.User == s.botUserID || ev.BotID != "" {
		return
	}

	content := ev.Text
	if strings.Contains(content, "<@"+s.botUserID+">") {
		content = strings.TrimSpace(strings.ReplaceAll(content, "<@"+s.botUserID+">", ""))
	}
	if content == "" {
		return
	}

	msg := domain.InboundMessage{
		ConversationID: ev.Channel,
		Content:        content,
		ChannelName:    "slack",
		SenderID:       ev.User,
		SenderName:     s.resolveUserName(ev.User),
		ReplyToID:      ev.ThreadTimeStamp,
	}

	if err := s.handler(s.ctx, msg); err != nil {
		s.logger.Error("slack handler error", "error", err, "channel", ev.Channel)
	}
}

var _ domain.Channel = (*SlackChannel)(nil)
