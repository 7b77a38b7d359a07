// Package receiver pulls updates from Telegram with long polling.
//
//	updates := make(chan tg.Update, cfg.UpdateBufferSize)
//	poller := receiver.NewPollingClient(cfg.Token, updates, logger, cfg)
//	if err := poller.Start(ctx); err != nil {
//	    return err
//	}
//	defer poller.Stop()
//
// The offset moves past an update only once the consumer has taken it, so a
// shutdown mid-batch redelivers the rest on the next start. Failed polls back
// off exponentially and feed a circuit breaker; Bot API refusals surface as
// *tg.APIError.
package receiver
