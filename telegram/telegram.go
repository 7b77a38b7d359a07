// Package telegram adapts Telegram Bot API messages to pipeline.Message.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/pipeline"
	"github.com/prilive-com/circlebot/sender"
	"github.com/prilive-com/circlebot/tg"
)

// Client is the part of sender.Client the adapter needs.
type Client interface {
	GetFile(ctx context.Context, fileID string) (*tg.File, error)
	DownloadFile(ctx context.Context, file *tg.File) ([]byte, error)
	SendSticker(ctx context.Context, req sender.SendStickerRequest) (*tg.Message, error)
	SendMessage(ctx context.Context, req sender.SendMessageRequest) (*tg.Message, error)
}

// DefaultDownloadTimeout bounds a shared download.
const DefaultDownloadTimeout = 60 * time.Second

// Adapter wraps tg.Message values for the pipeline. Concurrent downloads of
// the same file are collapsed into one request, which runs detached from
// the caller that started it.
type Adapter struct {
	client          Client
	parseMode       string
	downloadTimeout time.Duration
	logger          *slog.Logger
	downloads       resilience.SingleFlight[[]byte]
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithParseMode sets the parse mode of text replies. Defaults to "Markdown".
func WithParseMode(mode string) Option {
	return func(a *Adapter) {
		a.parseMode = mode
	}
}

// WithDownloadTimeout bounds the shared getFile and download request.
// Non-positive values keep DefaultDownloadTimeout.
func WithDownloadTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.downloadTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an Adapter on top of client.
func NewAdapter(client Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:          client,
		parseMode:       "Markdown",
		downloadTimeout: DefaultDownloadTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Wrap returns msg as a pipeline.Message.
func (a *Adapter) Wrap(msg *tg.Message) *Message {
	return &Message{a: a, msg: msg}
}

// Message is a tg.Message seen through pipeline.Message.
type Message struct {
	a   *Adapter
	msg *tg.Message
}

var _ pipeline.Message = (*Message)(nil)

// Raw returns the underlying Telegram message.
func (m *Message) Raw() *tg.Message { return m.msg }

func (m *Message) Body() string    { return m.msg.Text }
func (m *Message) Caption() string { return m.msg.Caption }

func (m *Message) HasQuoted() bool { return m.msg.ReplyToMessage != nil }

// Quoted returns the replied-to message. Telegram embeds it in the update,
// so no request is made.
func (m *Message) Quoted(context.Context) (pipeline.Message, error) {
	if m.msg.ReplyToMessage == nil {
		return nil, nil
	}
	return m.a.Wrap(m.msg.ReplyToMessage), nil
}

func (m *Message) HasMedia() bool {
	_, ok := describe(m.msg)
	return ok
}

func (m *Message) MediaKind() pipeline.MediaKind {
	md, ok := describe(m.msg)
	if !ok {
		return pipeline.KindOther
	}
	return md.kind
}

// Download fetches the attachment through getFile and the file endpoint.
// Callers asking for the same file share one request; each stops waiting
// when its own ctx ends without failing the others.
func (m *Message) Download(ctx context.Context) (pipeline.MediaBlob, error) {
	md, ok := describe(m.msg)
	if !ok || md.fileID == "" {
		return pipeline.MediaBlob{}, fmt.Errorf("telegram: message %d has no downloadable media", m.msg.MessageID)
	}

	key := md.uniqueID
	if key == "" {
		key = md.fileID
	}
	shared := context.WithoutCancel(ctx)
	data, err := m.a.downloads.DoContext(ctx, key, func() ([]byte, error) {
		dctx, cancel := context.WithTimeout(shared, m.a.downloadTimeout)
		defer cancel()
		file, err := m.a.client.GetFile(dctx, md.fileID)
		if err != nil {
			return nil, err
		}
		return m.a.client.DownloadFile(dctx, file)
	})
	if err != nil {
		return pipeline.MediaBlob{}, err
	}
	m.a.logger.Debug("media downloaded",
		"chat_id", m.msg.ChatIDValue(),
		"message_id", m.msg.MessageID,
		"kind", md.kind,
		"mime", md.mime,
		"bytes", len(data),
	)
	return pipeline.MediaBlob{Data: data, MIMEType: md.mime}, nil
}

// Sender returns the author. Posts without a user (channel posts) fall back
// to the sender chat.
func (m *Message) Sender() pipeline.Sender {
	if u := m.msg.From; u != nil {
		name := u.FullName()
		if name == "" && u.Username != "" {
			name = "@" + u.Username
		}
		return pipeline.Sender{Name: name, Number: strconv.FormatInt(u.ID, 10)}
	}
	if c := m.msg.SenderChat; c != nil {
		return pipeline.Sender{Name: c.Title, Number: strconv.FormatInt(c.ID, 10)}
	}
	if c := m.msg.Chat; c != nil {
		return pipeline.Sender{Name: c.Title, Number: strconv.FormatInt(c.ID, 10)}
	}
	return pipeline.Sender{}
}

func (m *Message) replyParameters() *tg.ReplyParameters {
	return &tg.ReplyParameters{
		MessageID:                m.msg.MessageID,
		AllowSendingWithoutReply: true,
	}
}

// ReplySticker uploads the sticker to the chat of m, replying to m.
func (m *Message) ReplySticker(ctx context.Context, s pipeline.StickerReply) error {
	_, err := m.a.client.SendSticker(ctx, sender.SendStickerRequest{
		ChatID:          m.msg.ChatIDValue(),
		Sticker:         sender.FromBytes(s.Data, s.FileName).WithContentType(s.MIMEType),
		ReplyParameters: m.replyParameters(),
	})
	return err
}

// ReplyText sends text to the chat of m, replying to m.
func (m *Message) ReplyText(ctx context.Context, text string) error {
	_, err := m.a.client.SendMessage(ctx, sender.SendMessageRequest{
		ChatID:          m.msg.ChatIDValue(),
		Text:            text,
		ParseMode:       m.a.parseMode,
		ReplyParameters: m.replyParameters(),
	})
	return err
}

type media struct {
	fileID   string
	uniqueID string
	mime     string
	kind     pipeline.MediaKind
}

// describe maps a Telegram attachment to a media kind. The bool is false when
// the message carries no attachment at all.
func describe(msg *tg.Message) (media, bool) {
	if msg == nil {
		return media{}, false
	}
	switch {
	case len(msg.Photo) > 0:
		p := msg.LargestPhoto()
		return media{fileID: p.FileID, uniqueID: p.FileUniqueID, mime: "image/jpeg", kind: pipeline.KindImage}, true

	case msg.Video != nil:
		v := msg.Video
		return media{fileID: v.FileID, uniqueID: v.FileUniqueID, mime: v.MimeType, kind: pipeline.KindVideo}, true

	case msg.Animation != nil:
		v := msg.Animation
		return media{fileID: v.FileID, uniqueID: v.FileUniqueID, mime: v.MimeType, kind: pipeline.KindVideo}, true

	case msg.VideoNote != nil:
		v := msg.VideoNote
		return media{fileID: v.FileID, uniqueID: v.FileUniqueID, mime: pipeline.SupportedVideoMIME, kind: pipeline.KindVideo}, true

	case msg.Sticker != nil:
		s := msg.Sticker
		md := media{fileID: s.FileID, uniqueID: s.FileUniqueID, kind: pipeline.KindOther}
		if s.IsStatic() {
			md.mime, md.kind = "image/webp", pipeline.KindImage
		}
		return md, true

	case msg.Document != nil:
		d := msg.Document
		md := media{fileID: d.FileID, uniqueID: d.FileUniqueID, mime: d.MimeType, kind: pipeline.KindOther}
		switch {
		case strings.HasPrefix(d.MimeType, "image/"):
			md.kind = pipeline.KindImage
		case strings.HasPrefix(d.MimeType, "video/"):
			md.kind = pipeline.KindVideo
		}
		return md, true

	case msg.Audio != nil:
		return media{fileID: msg.Audio.FileID, uniqueID: msg.Audio.FileUniqueID, mime: msg.Audio.MimeType, kind: pipeline.KindOther}, true

	case msg.Voice != nil:
		return media{fileID: msg.Voice.FileID, uniqueID: msg.Voice.FileUniqueID, mime: msg.Voice.MimeType, kind: pipeline.KindOther}, true
	}
	return media{}, false
}
