package sender

import "github.com/prilive-com/circlebot/internal/validate"

func validateSendMessage(req SendMessageRequest, maxText int) error {
	if err := validate.ChatID(req.ChatID); err != nil {
		return err
	}
	if err := validate.Text(req.Text, maxText); err != nil {
		return err
	}
	return validate.ParseMode(req.ParseMode)
}

func validateSendSticker(req SendStickerRequest) error {
	if err := validate.ChatID(req.ChatID); err != nil {
		return err
	}
	if req.Sticker.IsEmpty() {
		return validate.New("sticker", "is required")
	}
	if n, ok := req.Sticker.Size(); ok {
		switch {
		case n == 0:
			return validate.New("sticker", "upload is empty")
		case n > MaxUploadSize:
			return validate.Newf("sticker", "upload of %d bytes exceeds %d", n, MaxUploadSize)
		}
	}
	return nil
}
