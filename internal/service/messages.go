package service

import (
	"fmt"
	"time"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/messenger"
)

func welcomeMessage() messenger.SendMessage {
	return messenger.SendMessage{
		Text: "👋 Welcome to VoxScribe!\n\n" +
			"🎤 I turn voice messages into text, in any language.\n\n" +
			"📝 Just send me an audio or video message!\n\n" +
			fmt.Sprintf("🆓 Free: %d transcriptions per day\n", domain.FreeDailyLimit) +
			"⭐ Premium: unlimited access\n\n" +
			"Commands:\n" +
			"/help - Help\n" +
			"/status - Your account\n" +
			"/subscribe - Go premium",
		QuickReplies: []messenger.QuickReplyItem{
			{ContentType: "text", Title: "📊 My status", Payload: PayloadStatus},
			{ContentType: "text", Title: "⭐ Subscribe", Payload: PayloadSubscribe},
		},
	}
}

func helpText() string {
	return "🎤 Send me a voice message or a video and I'll reply with the text.\n\n" +
		fmt.Sprintf("🆓 Free plan: %d transcriptions per day, clips up to %d minutes.\n",
			domain.FreeDailyLimit, int(domain.MaxAudioDurationFree.Minutes())) +
		fmt.Sprintf("⭐ Premium: unlimited transcriptions, clips up to %d minutes.\n\n",
			int(domain.MaxAudioDurationPremium.Minutes())) +
		"Commands:\n" +
		"/status - Your account\n" +
		"/subscribe - Go premium"
}

func hintText() string {
	return "Send me a voice message and I'll transcribe it! 🎤\n" +
		"Отправьте мне голосовое сообщение, и я переведу его в текст! 🎤\n" +
		"ផ្ញើសារជាសំឡេងមកខ្ញុំ ខ្ញុំនឹងបកប្រែជាអក្សរ! 🎤"
}

func ackText() string {
	return "✅ Got your file! I'll send the transcription as soon as it's ready."
}

func statusText(user *domain.User, dailyUsage int64, now time.Time) string {
	var plan, limit string
	if user.IsPremium(now) {
		plan = "⭐ Premium"
		limit = "Unlimited transcriptions"
	} else {
		plan = "🆓 Free"
		remaining := domain.FreeDailyLimit - dailyUsage
		if remaining < 0 {
			remaining = 0
		}
		limit = fmt.Sprintf("Remaining today: %d/%d", remaining, domain.FreeDailyLimit)
	}

	return "📊 Your status\n\n" +
		fmt.Sprintf("Plan: %s\n", plan) +
		fmt.Sprintf("Transcriptions today: %d\n", dailyUsage) +
		limit + "\n" +
		fmt.Sprintf("Total transcriptions: %d", user.TotalTranscriptions)
}

func subscriptionMessage(monthlyLink, yearlyLink string) messenger.SendMessage {
	return messenger.SendMessage{
		Attachment: &messenger.TemplateCarrier{
			Type: "template",
			Payload: messenger.TemplatePayload{
				TemplateType: "button",
				Text: fmt.Sprintf("⭐ Premium - $%s/month or $%s/year\n\n", domain.PlanMonthly.Price(), domain.PlanYearly.Price()) +
					"✅ Unlimited transcriptions\n" +
					"✅ Clips up to 60 minutes\n" +
					"✅ Transcription history",
				Buttons: []messenger.Button{
					{Type: "web_url", Title: "💳 Monthly", URL: monthlyLink},
					{Type: "web_url", Title: "💳 Yearly", URL: yearlyLink},
					{Type: "postback", Title: "🔙 Back", Payload: PayloadBackToMenu},
				},
			},
		},
	}
}

func limitExceededMessage() messenger.SendMessage {
	return messenger.SendMessage{
		Attachment: &messenger.TemplateCarrier{
			Type: "template",
			Payload: messenger.TemplatePayload{
				TemplateType: "button",
				Text: "⚠️ You've reached today's free transcription limit.\n\n" +
					"Go premium for unlimited access!",
				Buttons: []messenger.Button{
					{Type: "postback", Title: "⭐ Get Premium", Payload: PayloadSubscribe},
				},
			},
		},
	}
}
