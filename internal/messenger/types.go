package messenger

// Incoming webhook payload as delivered by the messaging platform.
// Only the fields the bot consumes are modeled.

// WebhookPayload is the top-level body of a webhook delivery.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups messaging events for one page.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is a single event: an inbound message or a postback.
type MessagingEvent struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Postback  *Postback   `json:"postback,omitempty"`
}

// Participant identifies a conversation party by page-scoped ID.
type Participant struct {
	ID string `json:"id"`
}

// Message is an inbound user message.
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
}

// Attachment carries a media reference.
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload holds the CDN URL of the attachment.
type AttachmentPayload struct {
	URL string `json:"url"`
}

// QuickReply is a tapped quick-reply option.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Postback is a button tap.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Outbound message types for the Send API.

// SendMessage is the message body of a Send API request. Exactly one of
// Text/Attachment should be set; QuickReplies may accompany Text.
type SendMessage struct {
	Text         string            `json:"text,omitempty"`
	QuickReplies []QuickReplyItem  `json:"quick_replies,omitempty"`
	Attachment   *TemplateCarrier  `json:"attachment,omitempty"`
}

// QuickReplyItem is one quick-reply option offered under a text message.
type QuickReplyItem struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// TemplateCarrier wraps a structured message template.
type TemplateCarrier struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

// TemplatePayload is a button template body.
type TemplatePayload struct {
	TemplateType string   `json:"template_type"`
	Text         string   `json:"text"`
	Buttons      []Button `json:"buttons"`
}

// Button is a template button: type "web_url" with URL, or "postback" with
// Payload.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}
