// Package sender talks to the Bot API on the bot's behalf: replies, sticker
// uploads, getFile lookups and file downloads.
//
// Every call goes through a global limiter and a limiter for its chat, then
// a circuit breaker. Rate limits (429) are waited out for as long as Telegram
// asks; 5xx responses and transport errors back off exponentially. Refusals
// such as a blocked bot come back at once as sentinel errors from package tg.
//
// A sticker is uploaded from memory and is re-sent in full when a retry
// happens:
//
//	client, err := sender.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	msg, err := client.SendSticker(ctx, sender.SendStickerRequest{
//	    ChatID:  chatID,
//	    Sticker: sender.FromBytes(png, "circle.png").WithContentType("image/png"),
//	})
//	if errors.Is(err, tg.ErrBotBlocked) {
//	    // the user is gone, nothing to report
//	}
//
// Available reports false while the breaker is open.
package sender
