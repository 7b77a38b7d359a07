package pipeline

import (
	"context"

	"github.com/prilive-com/circlebot/internal/pngmeta"
)

// dispatch sends the sticker and then the confirmation text to msg's chat.
func (p *Pipeline) dispatch(ctx context.Context, runID string, msg Message, png []byte) error {
	author := msg.Sender().Label()

	tagged, err := pngmeta.Insert(png,
		pngmeta.Text{Key: pngmeta.KeyAuthor, Value: author},
		pngmeta.Text{Key: pngmeta.KeyTitle, Value: p.cfg.StickerName},
	)
	if err != nil {
		return stageErr(StageWrite, runID, err)
	}

	dctx, cancel := p.withTimeout(ctx, p.cfg.DeliveryTimeout)
	defer cancel()

	sticker := StickerReply{
		Data:     tagged,
		MIMEType: "image/png",
		FileName: StickerFileName,
		Author:   author,
		SetName:  p.cfg.StickerName,
		Sticker:  true,
	}
	if err := msg.ReplySticker(dctx, sticker); err != nil {
		return stageErr(StageDelivery, runID, err)
	}
	if err := msg.ReplyText(dctx, p.cfg.ConfirmationText); err != nil {
		return stageErr(StageDelivery, runID, err)
	}
	return nil
}
