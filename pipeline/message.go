package pipeline

import "context"

// MediaKind is the declared kind of a message attachment.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindOther MediaKind = "other"
)

// SupportedVideoMIME is the only video container the pipeline accepts.
const SupportedVideoMIME = "video/mp4"

// MediaBlob is a downloaded attachment.
type MediaBlob struct {
	Data     []byte
	MIMEType string
}

// Sender identifies the author of a message.
type Sender struct {
	Name   string // display name, may be empty
	Number string // stable identifier such as a user ID or phone number
}

// Label returns the display name, falling back to the identifier.
func (s Sender) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Number
}

// StickerReply is an outbound sticker attachment.
type StickerReply struct {
	Data     []byte
	MIMEType string
	FileName string
	Author   string
	SetName  string
	Sticker  bool
}

// Message is an inbound chat message as seen by the pipeline.
type Message interface {
	Body() string
	Caption() string

	// HasQuoted reports whether the message quotes another one.
	HasQuoted() bool
	// Quoted returns the quoted message. It may require a round trip.
	Quoted(ctx context.Context) (Message, error)

	HasMedia() bool
	MediaKind() MediaKind
	Download(ctx context.Context) (MediaBlob, error)

	Sender() Sender

	// ReplySticker and ReplyText answer in the conversation of this message.
	ReplySticker(ctx context.Context, sticker StickerReply) error
	ReplyText(ctx context.Context, text string) error
}
