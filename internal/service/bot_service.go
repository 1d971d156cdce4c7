// Package service contains the conversational bot logic: routing inbound
// webhook events to command, attachment, and postback handling, and
// deciding what goes back out through the Send API.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/events"
	"github.com/daracheol/voxscribe/internal/messenger"
	"github.com/daracheol/voxscribe/internal/payment"
	"github.com/daracheol/voxscribe/internal/store"
	"github.com/daracheol/voxscribe/internal/task"
)

// Postback payloads used by the bot's buttons and quick replies.
const (
	PayloadSubscribe  = "SUBSCRIBE"
	PayloadStatus     = "STATUS"
	PayloadBackToMenu = "BACK_TO_MENU"
)

// MessageSender is the slice of the messenger client the bot uses for
// synchronous replies.
type MessageSender interface {
	Send(ctx context.Context, recipientID string, msg messenger.SendMessage) error
	SendText(ctx context.Context, recipientID, text string) error
}

// BotService routes inbound messaging events. Media work is handed off
// through the event emitter; everything else is answered inline.
type BotService struct {
	users    store.UserStore
	emitter  events.EventEmitter
	sender   MessageSender
	payments payment.LinkCreator
	logger   *slog.Logger
}

// NewBotService wires the bot.
func NewBotService(
	users store.UserStore,
	emitter events.EventEmitter,
	sender MessageSender,
	payments payment.LinkCreator,
	logger *slog.Logger,
) *BotService {
	return &BotService{
		users:    users,
		emitter:  emitter,
		sender:   sender,
		payments: payments,
		logger:   logger.With("component", "bot_service"),
	}
}

// HandleWebhook processes every messaging event in a webhook delivery.
// Individual event failures are logged and skipped; the delivery as a
// whole always succeeds so the platform does not re-deliver.
func (s *BotService) HandleWebhook(ctx context.Context, payload *messenger.WebhookPayload) {
	if payload.Object != "page" {
		s.logger.DebugContext(ctx, "ignoring webhook for non-page object", "object", payload.Object)
		return
	}

	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			if err := s.handleEvent(ctx, event); err != nil {
				s.logger.ErrorContext(ctx, "failed to handle messaging event",
					"error", err,
					"sender_id", event.Sender.ID)
			}
		}
	}
}

func (s *BotService) handleEvent(ctx context.Context, event messenger.MessagingEvent) error {
	senderID := event.Sender.ID
	if senderID == "" {
		return nil
	}

	user, created, err := s.users.GetOrCreate(ctx, senderID)
	if err != nil {
		return err
	}
	if created {
		s.logger.InfoContext(ctx, "new user", "sender_id", senderID)
		return s.sender.Send(ctx, senderID, welcomeMessage())
	}
	if err := s.users.Touch(ctx, senderID); err != nil {
		s.logger.WarnContext(ctx, "failed to update last-active", "error", err, "sender_id", senderID)
	}

	switch {
	case event.Message != nil && event.Message.QuickReply != nil:
		return s.handlePostback(ctx, senderID, user, event.Message.QuickReply.Payload)
	case event.Message != nil && len(event.Message.Attachments) > 0:
		return s.handleAttachments(ctx, senderID, user, event.Message.Attachments)
	case event.Message != nil && event.Message.Text != "":
		return s.handleText(ctx, senderID, user, event.Message.Text)
	case event.Postback != nil:
		return s.handlePostback(ctx, senderID, user, event.Postback.Payload)
	default:
		return nil
	}
}

// Text commands the bot understands, in any of the communities it serves.
var (
	greetingCommands  = []string{"/start", "start", "hello", "hi", "привет", "សួស្តី"}
	helpCommands      = []string{"/help", "help", "помощь"}
	statusCommands    = []string{"/status", "status", "статус"}
	subscribeCommands = []string{"/subscribe", "subscribe", "подписка"}
)

func (s *BotService) handleText(ctx context.Context, senderID string, user *domain.User, text string) error {
	normalized := strings.ToLower(strings.TrimSpace(text))

	switch {
	case matchesCommand(normalized, greetingCommands):
		return s.sender.Send(ctx, senderID, welcomeMessage())
	case matchesCommand(normalized, helpCommands):
		return s.sender.SendText(ctx, senderID, helpText())
	case matchesCommand(normalized, statusCommands):
		return s.sendStatus(ctx, senderID, user)
	case matchesCommand(normalized, subscribeCommands):
		return s.sendSubscriptionOptions(ctx, senderID)
	default:
		return s.sender.SendText(ctx, senderID, hintText())
	}
}

func (s *BotService) handleAttachments(ctx context.Context, senderID string, user *domain.User, attachments []messenger.Attachment) error {
	// Only the first transcribable attachment is processed.
	for _, attachment := range attachments {
		if attachment.Type != "audio" && attachment.Type != "video" {
			continue
		}
		if attachment.Payload.URL == "" {
			return s.sender.SendText(ctx, senderID, "❌ I couldn't read the file link. Please try sending it again.")
		}
		return s.submitMedia(ctx, senderID, user, attachment)
	}
	return s.sender.SendText(ctx, senderID, "Please send a supported audio or video file.")
}

func (s *BotService) submitMedia(ctx context.Context, senderID string, user *domain.User, attachment messenger.Attachment) error {
	now := time.Now().UTC()
	if !user.IsPremium(now) {
		usage, err := s.users.DailyUsage(ctx, senderID)
		if err != nil {
			return err
		}
		if usage >= domain.FreeDailyLimit {
			s.logger.InfoContext(ctx, "daily limit reached", "sender_id", senderID, "usage", usage)
			return s.sender.Send(ctx, senderID, limitExceededMessage())
		}
	}

	event, err := events.NewTaskRequestEvent(task.TypeTranscriptionProcess, task.ProcessMediaPayload{
		SenderID:          senderID,
		MediaURL:          attachment.Payload.URL,
		MediaType:         attachment.Type,
		PreferredLanguage: user.PreferredLanguage,
		TargetLanguage:    user.TargetLanguage,
		AutoTranslate:     user.AutoTranslate,
	})
	if err != nil {
		return err
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to submit transcription task", "error", err, "sender_id", senderID)
		return s.sender.SendText(ctx, senderID, "❌ Something went wrong on our side. Please try again in a moment.")
	}

	return s.sender.SendText(ctx, senderID, ackText())
}

func (s *BotService) handlePostback(ctx context.Context, senderID string, user *domain.User, payload string) error {
	switch payload {
	case PayloadSubscribe:
		return s.sendSubscriptionOptions(ctx, senderID)
	case PayloadStatus:
		return s.sendStatus(ctx, senderID, user)
	case PayloadBackToMenu:
		return s.sender.Send(ctx, senderID, welcomeMessage())
	default:
		s.logger.DebugContext(ctx, "ignoring unknown postback", "payload", payload)
		return nil
	}
}

func (s *BotService) sendStatus(ctx context.Context, senderID string, user *domain.User) error {
	usage, err := s.users.DailyUsage(ctx, senderID)
	if err != nil {
		return err
	}
	return s.sender.SendText(ctx, senderID, statusText(user, usage, time.Now().UTC()))
}

func (s *BotService) sendSubscriptionOptions(ctx context.Context, senderID string) error {
	monthly, err := s.payments.CreateSubscriptionLink(ctx, senderID, domain.PlanMonthly)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create monthly checkout link", "error", err, "sender_id", senderID)
		return s.sender.SendText(ctx, senderID, "❌ Payments are temporarily unavailable. Please try again later.")
	}
	yearly, err := s.payments.CreateSubscriptionLink(ctx, senderID, domain.PlanYearly)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create yearly checkout link", "error", err, "sender_id", senderID)
		return s.sender.SendText(ctx, senderID, "❌ Payments are temporarily unavailable. Please try again later.")
	}
	return s.sender.Send(ctx, senderID, subscriptionMessage(monthly, yearly))
}

func matchesCommand(text string, commands []string) bool {
	for _, cmd := range commands {
		if text == cmd {
			return true
		}
	}
	return false
}
