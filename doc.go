// Package circlebot is a Telegram bot that turns images and video frames into
// circular stickers.
//
// A user posts a photo, a video or a static sticker with one of the trigger
// keywords in the caption, or replies to such a message with the keyword. The
// bot downloads the media, extracts a frame with ffmpeg when it is a video,
// crops the still to its inscribed circle and sends the result back as a
// sticker followed by a short confirmation.
//
// # Quick Start
//
//	bot, err := circlebot.New(token,
//	    circlebot.WithPipelineConfig(pipeline.Config{TempDir: "/var/tmp/circlebot"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bot.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// Every triggering message runs in its own goroutine. WithMaxConcurrentRuns
// bounds how many conversions run at once and WithChatRateLimit drops
// triggers from chats that send them too fast. Close waits for in-flight
// runs.
//
// # Packages
//
//   - pipeline: trigger matching, media resolution, frame extraction, masking and dispatch
//   - circle: the circular mask
//   - telegram: adapts Bot API messages to the pipeline
//   - sender, receiver, tg: the Bot API transport
package circlebot
