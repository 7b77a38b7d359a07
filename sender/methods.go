package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prilive-com/circlebot/internal/scrub"
	"github.com/prilive-com/circlebot/internal/validate"
	"github.com/prilive-com/circlebot/tg"
)

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*tg.Message, error) {
	if err := validateSendMessage(req, c.config.MaxTextLength); err != nil {
		return nil, err
	}
	return withRetry(c, ctx, func() (*tg.Message, error) {
		resp, err := c.executeRequest(ctx, "sendMessage", req, extractChatID(req.ChatID))
		if err != nil {
			return nil, err
		}
		return parseMessage(resp)
	})
}

// SendSticker uploads and sends a sticker. Uploads built with FromBytes are
// replayed on retry; FromReader uploads are not retry-safe.
func (c *Client) SendSticker(ctx context.Context, req SendStickerRequest) (*tg.Message, error) {
	if err := validateSendSticker(req); err != nil {
		return nil, err
	}
	return withRetry(c, ctx, func() (*tg.Message, error) {
		resp, err := c.executeRequest(ctx, "sendSticker", req, extractChatID(req.ChatID))
		if err != nil {
			return nil, err
		}
		return parseMessage(resp)
	})
}

// GetFile resolves a file_id to a downloadable file path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*tg.File, error) {
	if err := validate.FileID(fileID); err != nil {
		return nil, err
	}
	return withRetry(c, ctx, func() (*tg.File, error) {
		resp, err := c.executeRequest(ctx, "getFile", GetFileRequest{FileID: fileID})
		if err != nil {
			return nil, err
		}
		var file tg.File
		if err := json.Unmarshal(resp.Result, &file); err != nil {
			return nil, fmt.Errorf("failed to parse file: %w", err)
		}
		return &file, nil
	})
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*tg.User, error) {
	return withRetry(c, ctx, func() (*tg.User, error) {
		resp, err := c.executeRequest(ctx, "getMe", GetMeRequest{})
		if err != nil {
			return nil, err
		}
		var user tg.User
		if err := json.Unmarshal(resp.Result, &user); err != nil {
			return nil, fmt.Errorf("failed to parse user: %w", err)
		}
		return &user, nil
	})
}

// FileURL builds the download URL for a file path returned by getFile.
// The URL embeds the bot token and must never be logged.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.config.BaseURL, c.config.Token.Value(), strings.TrimPrefix(filePath, "/"))
}

// DownloadFile fetches the content of a file previously resolved with
// GetFile. Content larger than the configured maximum fails with
// tg.ErrFileTooBig.
func (c *Client) DownloadFile(ctx context.Context, file *tg.File) ([]byte, error) {
	if file == nil || file.FilePath == "" {
		return nil, validate.New("file_path", "cannot be empty")
	}
	limit := c.config.MaxDownloadBytes
	if limit > 0 && file.FileSize > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", tg.ErrFileTooBig, file.FileSize, limit)
	}

	return withRetry(c, ctx, func() ([]byte, error) {
		return c.download(ctx, file.FilePath, limit)
	})
}

func (c *Client) download(ctx context.Context, filePath string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(filePath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", scrub.Error(err, c.config.Token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", scrub.Error(err, c.config.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, tg.NewAPIError("downloadFile", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", scrub.Error(err, c.config.Token))
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", tg.ErrFileTooBig, limit)
	}
	return data, nil
}
