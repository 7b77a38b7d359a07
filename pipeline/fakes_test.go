package pipeline_test

import (
	"context"
	"os"
	"sync"

	"github.com/prilive-com/circlebot/pipeline"
)

type fakeMessage struct {
	body, caption string

	quoted    *fakeMessage
	quotedErr error

	media       bool
	kind        pipeline.MediaKind
	blob        pipeline.MediaBlob
	downloadErr error
	blockUntil  bool // Download waits for ctx to end

	sender pipeline.Sender

	stickerErr error
	textErr    error

	mu        sync.Mutex
	downloads int
	stickers  []pipeline.StickerReply
	texts     []string
}

func (m *fakeMessage) Body() string    { return m.body }
func (m *fakeMessage) Caption() string { return m.caption }
func (m *fakeMessage) HasQuoted() bool { return m.quoted != nil || m.quotedErr != nil }

func (m *fakeMessage) Quoted(context.Context) (pipeline.Message, error) {
	if m.quotedErr != nil {
		return nil, m.quotedErr
	}
	return m.quoted, nil
}

func (m *fakeMessage) HasMedia() bool                { return m.media }
func (m *fakeMessage) MediaKind() pipeline.MediaKind { return m.kind }
func (m *fakeMessage) Sender() pipeline.Sender       { return m.sender }

func (m *fakeMessage) Download(ctx context.Context) (pipeline.MediaBlob, error) {
	m.mu.Lock()
	m.downloads++
	m.mu.Unlock()
	if m.blockUntil {
		<-ctx.Done()
		return pipeline.MediaBlob{}, ctx.Err()
	}
	if m.downloadErr != nil {
		return pipeline.MediaBlob{}, m.downloadErr
	}
	return m.blob, nil
}

func (m *fakeMessage) ReplySticker(_ context.Context, s pipeline.StickerReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stickerErr != nil {
		return m.stickerErr
	}
	m.stickers = append(m.stickers, s)
	return nil
}

func (m *fakeMessage) ReplyText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return m.textErr
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMessage) replies() ([]pipeline.StickerReply, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.StickerReply(nil), m.stickers...), append([]string(nil), m.texts...)
}

// fakeExtractor writes a fixed PNG to the output path, or fails.
type fakeExtractor struct {
	frame []byte
	err   error

	mu    sync.Mutex
	calls []extractCall
}

type extractCall struct {
	video, out string
	videoData  []byte
}

func (f *fakeExtractor) Extract(_ context.Context, video, out string) error {
	data, _ := os.ReadFile(video)
	f.mu.Lock()
	f.calls = append(f.calls, extractCall{video: video, out: out, videoData: data})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, f.frame, 0o600)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
