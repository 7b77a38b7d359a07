package tg

// Update represents an incoming update from Telegram.
// Only the message-carrying fields are decoded; other update kinds are
// ignored by the bot.
type Update struct {
	UpdateID          int      `json:"update_id"`
	Message           *Message `json:"message,omitempty"`
	EditedMessage     *Message `json:"edited_message,omitempty"`
	ChannelPost       *Message `json:"channel_post,omitempty"`
	EditedChannelPost *Message `json:"edited_channel_post,omitempty"`
}

// EffectiveMessage returns the new message carried by the update, if any.
// Edits are skipped so that editing a caption does not re-trigger a run.
func (u *Update) EffectiveMessage() *Message {
	if u == nil {
		return nil
	}
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}
