package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/events"
	"github.com/daracheol/voxscribe/internal/messenger"
	"github.com/daracheol/voxscribe/internal/store"
	"github.com/daracheol/voxscribe/internal/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserStore struct {
	store.UserStore

	user       *domain.User
	isNew      bool
	dailyUsage int64
	touched    int
}

func (f *fakeUserStore) GetOrCreate(_ context.Context, id string) (*domain.User, bool, error) {
	if f.user == nil {
		u, _ := domain.NewUser(id)
		f.user = u
	}
	return f.user, f.isNew, nil
}

func (f *fakeUserStore) Touch(_ context.Context, _ string) error {
	f.touched++
	return nil
}

func (f *fakeUserStore) DailyUsage(_ context.Context, _ string) (int64, error) {
	return f.dailyUsage, nil
}

type capturingSender struct {
	messages []messenger.SendMessage
	texts    []string
}

func (c *capturingSender) Send(_ context.Context, _ string, msg messenger.SendMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturingSender) SendText(_ context.Context, _ string, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

type capturingEmitter struct {
	events []*events.TaskRequestEvent
}

func (c *capturingEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	c.events = append(c.events, event)
	return nil
}

type fakeLinkCreator struct{}

func (fakeLinkCreator) CreateSubscriptionLink(_ context.Context, userID string, plan domain.BillingPlan) (string, error) {
	return "https://pay.example.com/checkout?plan=" + string(plan) + "&user=" + userID, nil
}

type botFixture struct {
	svc     *BotService
	users   *fakeUserStore
	sender  *capturingSender
	emitter *capturingEmitter
}

func newFixture() *botFixture {
	users := &fakeUserStore{}
	sender := &capturingSender{}
	emitter := &capturingEmitter{}
	svc := NewBotService(users, emitter, sender, fakeLinkCreator{}, discardLogger())
	return &botFixture{svc: svc, users: users, sender: sender, emitter: emitter}
}

func webhookWithText(text string) *messenger.WebhookPayload {
	return &messenger.WebhookPayload{
		Object: "page",
		Entry: []messenger.Entry{{
			Messaging: []messenger.MessagingEvent{{
				Sender:  messenger.Participant{ID: "psid-1"},
				Message: &messenger.Message{MID: "m1", Text: text},
			}},
		}},
	}
}

func webhookWithAttachment(attachmentType, url string) *messenger.WebhookPayload {
	return &messenger.WebhookPayload{
		Object: "page",
		Entry: []messenger.Entry{{
			Messaging: []messenger.MessagingEvent{{
				Sender: messenger.Participant{ID: "psid-1"},
				Message: &messenger.Message{
					MID:         "m1",
					Attachments: []messenger.Attachment{{Type: attachmentType, Payload: messenger.AttachmentPayload{URL: url}}},
				},
			}},
		}},
	}
}

func webhookWithPostback(payload string) *messenger.WebhookPayload {
	return &messenger.WebhookPayload{
		Object: "page",
		Entry: []messenger.Entry{{
			Messaging: []messenger.MessagingEvent{{
				Sender:   messenger.Participant{ID: "psid-1"},
				Postback: &messenger.Postback{Payload: payload},
			}},
		}},
	}
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()

	t.Run("welcomes first-time users", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.isNew = true

		f.svc.HandleWebhook(context.Background(), webhookWithText("anything at all"))

		require.Len(t, f.sender.messages, 1)
		assert.Contains(t, f.sender.messages[0].Text, "Welcome")
		assert.Empty(t, f.emitter.events)
	})

	t.Run("ignores non-page deliveries", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), &messenger.WebhookPayload{Object: "instagram"})

		assert.Empty(t, f.sender.messages)
		assert.Empty(t, f.sender.texts)
	})

	t.Run("touches returning users", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithText("/help"))

		assert.Equal(t, 1, f.users.touched)
	})
}

func TestTextCommands(t *testing.T) {
	t.Parallel()

	t.Run("greetings get the welcome message", func(t *testing.T) {
		t.Parallel()
		for _, greeting := range []string{"/start", "Hello", "ПРИВЕТ", "សួស្តី"} {
			f := newFixture()
			f.svc.HandleWebhook(context.Background(), webhookWithText(greeting))
			require.Len(t, f.sender.messages, 1, "greeting %q", greeting)
			assert.Contains(t, f.sender.messages[0].Text, "Welcome")
		}
	})

	t.Run("help lists the plans", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithText("/help"))

		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "Free plan")
	})

	t.Run("status reports remaining quota", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.dailyUsage = 4

		f.svc.HandleWebhook(context.Background(), webhookWithText("/status"))

		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "Transcriptions today: 4")
		assert.Contains(t, f.sender.texts[0], "Remaining today: 6/10")
	})

	t.Run("subscribe sends checkout buttons", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithText("/subscribe"))

		require.Len(t, f.sender.messages, 1)
		tmpl := f.sender.messages[0].Attachment
		require.NotNil(t, tmpl)
		require.Len(t, tmpl.Payload.Buttons, 3)
		assert.Contains(t, tmpl.Payload.Buttons[0].URL, "plan=monthly")
		assert.Contains(t, tmpl.Payload.Buttons[1].URL, "plan=yearly")
		assert.Equal(t, PayloadBackToMenu, tmpl.Payload.Buttons[2].Payload)
	})

	t.Run("unknown text gets the trilingual hint", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithText("what is this"))

		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "voice message")
		assert.Contains(t, f.sender.texts[0], "សំឡេង")
	})
}

func TestAttachments(t *testing.T) {
	t.Parallel()

	t.Run("audio under the limit is queued and acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.dailyUsage = 3

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("audio", "https://cdn.example.com/clip.mp4"))

		require.Len(t, f.emitter.events, 1)
		assert.Equal(t, task.TypeTranscriptionProcess, f.emitter.events[0].Type)

		var payload task.ProcessMediaPayload
		require.NoError(t, f.emitter.events[0].UnmarshalPayload(&payload))
		assert.Equal(t, "psid-1", payload.SenderID)
		assert.Equal(t, "https://cdn.example.com/clip.mp4", payload.MediaURL)
		assert.Equal(t, "audio", payload.MediaType)

		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "Got your file")
	})

	t.Run("video attachments are also queued", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("video", "https://cdn.example.com/clip.mp4"))

		require.Len(t, f.emitter.events, 1)
	})

	t.Run("free users at the daily limit are upsold, not queued", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.users.dailyUsage = domain.FreeDailyLimit

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("audio", "https://cdn.example.com/clip.mp4"))

		assert.Empty(t, f.emitter.events)
		require.Len(t, f.sender.messages, 1)
		require.NotNil(t, f.sender.messages[0].Attachment)
		assert.Contains(t, f.sender.messages[0].Attachment.Payload.Text, "limit")
	})

	t.Run("premium users are never limited", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		user, _ := domain.NewUser("psid-1")
		user.Subscription = domain.SubscriptionPremium
		end := time.Now().UTC().Add(24 * time.Hour)
		user.SubscriptionEnd = &end
		f.users.user = user
		f.users.dailyUsage = 500

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("audio", "https://cdn.example.com/clip.mp4"))

		require.Len(t, f.emitter.events, 1)
	})

	t.Run("non-media attachments are rejected politely", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("image", "https://cdn.example.com/photo.jpg"))

		assert.Empty(t, f.emitter.events)
		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "audio or video")
	})

	t.Run("user preferences ride along on the task", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		user, _ := domain.NewUser("psid-1")
		user.PreferredLanguage = "km"
		user.TargetLanguage = "en"
		user.AutoTranslate = true
		f.users.user = user

		f.svc.HandleWebhook(context.Background(), webhookWithAttachment("audio", "https://cdn.example.com/clip.mp4"))

		require.Len(t, f.emitter.events, 1)
		var payload task.ProcessMediaPayload
		require.NoError(t, f.emitter.events[0].UnmarshalPayload(&payload))
		assert.Equal(t, "km", payload.PreferredLanguage)
		assert.Equal(t, "en", payload.TargetLanguage)
		assert.True(t, payload.AutoTranslate)
	})
}

func TestPostbacks(t *testing.T) {
	t.Parallel()

	t.Run("subscribe postback sends checkout buttons", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithPostback(PayloadSubscribe))

		require.Len(t, f.sender.messages, 1)
		assert.NotNil(t, f.sender.messages[0].Attachment)
	})

	t.Run("back-to-menu returns the welcome message", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithPostback(PayloadBackToMenu))

		require.Len(t, f.sender.messages, 1)
		assert.Contains(t, f.sender.messages[0].Text, "Welcome")
	})

	t.Run("quick replies are routed like postbacks", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		payload := &messenger.WebhookPayload{
			Object: "page",
			Entry: []messenger.Entry{{
				Messaging: []messenger.MessagingEvent{{
					Sender: messenger.Participant{ID: "psid-1"},
					Message: &messenger.Message{
						MID:        "m1",
						Text:       "📊 My status",
						QuickReply: &messenger.QuickReply{Payload: PayloadStatus},
					},
				}},
			}},
		}
		f.svc.HandleWebhook(context.Background(), payload)

		require.Len(t, f.sender.texts, 1)
		assert.Contains(t, f.sender.texts[0], "Your status")
	})

	t.Run("unknown postbacks are ignored", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		f.svc.HandleWebhook(context.Background(), webhookWithPostback("SOMETHING_ELSE"))

		assert.Empty(t, f.sender.messages)
		assert.Empty(t, f.sender.texts)
	})
}
