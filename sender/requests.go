package sender

import "github.com/prilive-com/circlebot/tg"

// SendMessageRequest represents a sendMessage request.
type SendMessageRequest struct {
	ChatID              tg.ChatID           `json:"chat_id"`
	Text                string              `json:"text"`
	ParseMode           string              `json:"parse_mode,omitempty"`
	DisableNotification bool                `json:"disable_notification,omitempty"`
	ReplyParameters     *tg.ReplyParameters `json:"reply_parameters,omitempty"`
}

// SendStickerRequest represents a sendSticker request.
type SendStickerRequest struct {
	ChatID              tg.ChatID           `json:"chat_id"`
	Sticker             InputFile           `json:"sticker"`
	Emoji               string              `json:"emoji,omitempty"`
	DisableNotification bool                `json:"disable_notification,omitempty"`
	ReplyParameters     *tg.ReplyParameters `json:"reply_parameters,omitempty"`
}

// GetFileRequest represents a getFile request.
type GetFileRequest struct {
	FileID string `json:"file_id"`
}

// GetMeRequest has no parameters; it exists so getMe goes through the same
// request path as everything else.
type GetMeRequest struct{}
