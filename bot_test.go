package circlebot_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot"
	"github.com/prilive-com/circlebot/internal/testutil"
	"github.com/prilive-com/circlebot/pipeline"
	"github.com/prilive-com/circlebot/tg"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot(t *testing.T, server *testutil.MockTelegramServer, opts ...circlebot.Option) *circlebot.Bot {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.TempDir = t.TempDir()
	base := []circlebot.Option{
		circlebot.WithBaseURL(server.BaseURL()),
		circlebot.WithRetries(0),
		circlebot.WithPolling(1, 100),
		circlebot.WithLogger(quietLogger()),
		circlebot.WithPipelineConfig(cfg),
	}
	bot, err := circlebot.New(testutil.TestToken, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { bot.Close() })
	return bot
}

// serveMedia wires getFile and the download endpoint to return data.
func serveMedia(server *testutil.MockTelegramServer, data []byte) {
	server.On("/bot"+testutil.TestToken+"/getFile", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyFile(w, testutil.TestFileID, testutil.TestFilePath, int64(len(data)))
	})
	server.OnFile(testutil.TestToken, testutil.TestFilePath, func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyBytes(w, data)
	})
}

func serveReplies(server *testutil.MockTelegramServer) {
	server.On("/bot"+testutil.TestToken+"/sendSticker", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplySticker(w, 500)
	})
	server.On("/bot"+testutil.TestToken+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMessage(w, 501)
	})
}

type gaugeExtractor struct {
	frame []byte
	delay time.Duration
	cur   atomic.Int32
	peak  atomic.Int32
	calls atomic.Int32
}

func (g *gaugeExtractor) Extract(ctx context.Context, video, out string) error {
	g.calls.Add(1)
	n := g.cur.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(g.delay)
	g.cur.Add(-1)
	return os.WriteFile(out, g.frame, 0o600)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := circlebot.New("")
	assert.ErrorIs(t, err, tg.ErrInvalidToken)
}

func TestNew_RejectsBadPolling(t *testing.T) {
	_, err := circlebot.New(testutil.TestToken, circlebot.WithPolling(120, 100))
	assert.Error(t, err)
}

func TestBotClose_Idempotent(t *testing.T) {
	bot, err := circlebot.New(testutil.TestToken, circlebot.WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.NoError(t, bot.Close())
	assert.NoError(t, bot.Close())
	assert.NoError(t, bot.Close())
}

func TestBotClose_Concurrent(t *testing.T) {
	bot, err := circlebot.New(testutil.TestToken, circlebot.WithLogger(quietLogger()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			_ = bot.Close()
		})
	}
	wg.Wait()
}

func TestBot_ConvertsPolledPhoto(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveMedia(server, testutil.TestPNG(t, 24, 24))
	serveReplies(server)

	var served atomic.Bool
	server.OnMethod("GET", "/bot"+testutil.TestToken+"/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		if served.CompareAndSwap(false, true) {
			testutil.ReplyOK(w, []tg.Update{testutil.TestUpdateWithMessage(1, testutil.TestPhotoMessage(10, "!circle"))})
			return
		}
		time.Sleep(20 * time.Millisecond)
		testutil.ReplyEmptyUpdates(w)
	})

	bot := newTestBot(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bot.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(server.CapturesFor("sendMessage")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	stickers := server.CapturesFor("sendSticker")
	require.Len(t, stickers, 1)
	img := testutil.DecodePNG(t, stickers[0].MultipartFile(t, "sticker"))
	assert.Equal(t, 24, img.Bounds().Dx())

	server.CapturesFor("sendMessage")[0].AssertJSONField(t, "text", pipeline.DefaultConfirmationText)
	assert.Equal(t, int64(1), bot.Stats().Delivered)
}

func TestBot_QuotedVideo(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveMedia(server, []byte("mp4 data"))
	serveReplies(server)
	ext := &gaugeExtractor{frame: testutil.TestPNG(t, 8, 8)}
	bot := newTestBot(t, server, circlebot.WithPipelineOptions(pipeline.WithExtractor(ext)))

	video := testutil.TestVideoMessage(1, "", "video/mp4")
	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(1, testutil.TestReply(2, "!دائره", video)))
	require.NoError(t, bot.Close())

	assert.Equal(t, int32(1), ext.calls.Load())
	require.Len(t, server.CapturesFor("sendSticker"), 1)
	form := server.CapturesFor("sendSticker")[0].MultipartForm(t)
	assert.Contains(t, form.Value["reply_parameters"][0], `"message_id":2`)
}

func TestBot_FailureNotice(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/getFile", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyBadRequest(w, "invalid file_id")
	})
	serveReplies(server)
	bot := newTestBot(t, server)

	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(1, testutil.TestPhotoMessage(5, "!circle")))
	require.NoError(t, bot.Close())

	msgs := server.CapturesFor("sendMessage")
	require.Len(t, msgs, 1)
	msgs[0].AssertJSONField(t, "text", circlebot.DefaultFailureText)
	assert.Empty(t, server.CapturesFor("sendSticker"))
	assert.Equal(t, int64(1), bot.Stats().Failures[pipeline.StageFetch])
}

func TestBot_NoNoticeOnDeliveryFailure(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveMedia(server, testutil.TestPNG(t, 8, 8))
	server.On("/bot"+testutil.TestToken+"/sendSticker", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyForbidden(w, "bot was blocked by the user")
	})
	var logs testutil.LogBuffer
	bot := newTestBot(t, server, circlebot.WithLogger(logs.Logger()))

	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(1, testutil.TestPhotoMessage(5, "!circle")))
	require.NoError(t, bot.Close())

	assert.Empty(t, server.CapturesFor("sendMessage"))
	assert.Equal(t, int64(1), bot.Stats().Failures[pipeline.StageDelivery])
	assert.Contains(t, logs.String(), "chat unreachable, reply dropped")
}

func TestBot_IgnoresNonTriggers(t *testing.T) {
	server := testutil.NewMockServer(t)
	bot := newTestBot(t, server)

	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(1, testutil.TestPhotoMessage(5, "nice photo")))
	bot.Handle(context.Background(), tg.Update{UpdateID: 2})
	require.NoError(t, bot.Close())

	assert.Zero(t, server.CaptureCount())
	assert.Equal(t, int64(1), bot.Stats().NoOps[pipeline.NoOpNoTrigger])
}

func TestBot_ThrottlesPerChat(t *testing.T) {
	server := testutil.NewMockServer(t)
	bot := newTestBot(t, server, circlebot.WithChatRateLimit(0.001, 1))

	for i := range 3 {
		bot.Handle(context.Background(), testutil.TestUpdateWithMessage(i, testutil.TestMessage(i, "!circle")))
	}
	other := testutil.TestMessage(9, "!circle")
	other.Chat = testutil.TestGroupChat(-1001, "group")
	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(9, other))
	require.NoError(t, bot.Close())

	// One run per chat; text-only triggers end as no_media.
	assert.Equal(t, int64(2), bot.Stats().NoOps[pipeline.NoOpNoMedia])
}

func TestBot_BoundsConcurrentRuns(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveMedia(server, []byte("mp4 data"))
	serveReplies(server)
	ext := &gaugeExtractor{frame: testutil.TestPNG(t, 8, 8), delay: 50 * time.Millisecond}
	bot := newTestBot(t, server,
		circlebot.WithMaxConcurrentRuns(2),
		circlebot.WithChatRateLimit(0, 0),
		circlebot.WithPipelineOptions(pipeline.WithExtractor(ext)),
	)

	for i := range 6 {
		msg := testutil.TestVideoMessage(i, "!circle", "video/mp4")
		msg.Chat = testutil.TestGroupChat(int64(-100-i), "g")
		bot.Handle(context.Background(), testutil.TestUpdateWithMessage(i, msg))
	}
	require.NoError(t, bot.Close())

	assert.Equal(t, int32(6), ext.calls.Load())
	assert.LessOrEqual(t, ext.peak.Load(), int32(2))
	assert.Equal(t, int64(6), bot.Stats().Delivered)
}

func TestBot_LogsTriggerDroppedOnShutdown(t *testing.T) {
	server := testutil.NewMockServer(t)
	serveMedia(server, []byte("mp4 data"))
	serveReplies(server)
	ext := &gaugeExtractor{frame: testutil.TestPNG(t, 8, 8), delay: 200 * time.Millisecond}
	var logs testutil.LogBuffer
	bot := newTestBot(t, server,
		circlebot.WithLogger(logs.Logger()),
		circlebot.WithMaxConcurrentRuns(1),
		circlebot.WithChatRateLimit(0, 0),
		circlebot.WithPipelineOptions(pipeline.WithExtractor(ext)),
	)

	bot.Handle(context.Background(), testutil.TestUpdateWithMessage(1, testutil.TestVideoMessage(1, "!circle", "video/mp4")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bot.Handle(ctx, testutil.TestUpdateWithMessage(2, testutil.TestVideoMessage(2, "!circle", "video/mp4")))
	require.NoError(t, bot.Close())

	assert.Equal(t, int32(1), ext.calls.Load())
	assert.Equal(t, int64(1), bot.Stats().Delivered)
	assert.Contains(t, logs.String(), "trigger dropped on shutdown")
	assert.Contains(t, logs.String(), "message_id=2")
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnMethod("GET", "/bot"+testutil.TestToken+"/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		testutil.ReplyEmptyUpdates(w)
	})
	bot := newTestBot(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	assert.Eventually(t, bot.IsHealthy, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
