package testutil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prilive-com/circlebot/tg"
)

type envelope struct {
	OK          bool                   `json:"ok"`
	Result      any                    `json:"result,omitempty"`
	ErrorCode   int                    `json:"error_code,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  *tg.ResponseParameters `json:"parameters,omitempty"`
}

// ReplyOK writes a successful Telegram API response.
func ReplyOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{
		OK:     true,
		Result: result,
	})
}

// replyError writes an ok=false envelope with a matching HTTP status.
func replyError(w http.ResponseWriter, code int, description string, params *tg.ResponseParameters) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{
		OK:          false,
		ErrorCode:   code,
		Description: description,
		Parameters:  params,
	})
}

// ReplyRateLimit writes a 429 rate limit response with retry_after in both JSON and HTTP header.
func ReplyRateLimit(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	replyError(w, 429, "Too Many Requests: retry after "+strconv.Itoa(retryAfter), &tg.ResponseParameters{
		RetryAfter: retryAfter,
	})
}

// ReplyRateLimitHeaderOnly writes a 429 rate limit response with retry_after ONLY in HTTP header.
// Useful for testing HTTP header fallback parsing.
func ReplyRateLimitHeaderOnly(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	replyError(w, 429, "Too Many Requests: retry after "+strconv.Itoa(retryAfter), nil)
}

// ReplyServerError writes a 5xx server error response.
func ReplyServerError(w http.ResponseWriter, code int, description string) {
	replyError(w, code, description, nil)
}

// ReplyBadRequest writes a 400 bad request error.
func ReplyBadRequest(w http.ResponseWriter, description string) {
	replyError(w, 400, "Bad Request: "+description, nil)
}

// ReplyForbidden writes a 403 forbidden error (e.g., bot blocked).
func ReplyForbidden(w http.ResponseWriter, description string) {
	replyError(w, 403, "Forbidden: "+description, nil)
}

// ReplyMessage writes a successful message response.
func ReplyMessage(w http.ResponseWriter, messageID int) {
	ReplyOK(w, map[string]any{
		"message_id": messageID,
		"date":       1234567890,
		"chat": map[string]any{
			"id":   TestChatID,
			"type": "private",
		},
		"text": "Test message",
	})
}

// ReplyEmptyUpdates writes an empty getUpdates response.
func ReplyEmptyUpdates(w http.ResponseWriter) {
	ReplyOK(w, []map[string]any{})
}

// ReplyUser writes a successful getMe response.
func ReplyUser(w http.ResponseWriter) {
	ReplyOK(w, map[string]any{
		"id":         TestBotID,
		"is_bot":     true,
		"first_name": "Test Bot",
		"username":   "testbot",
	})
}

// ReplyFile writes a successful getFile response.
func ReplyFile(w http.ResponseWriter, fileID, filePath string, size int64) {
	ReplyOK(w, map[string]any{
		"file_id":        fileID,
		"file_unique_id": "u",
		"file_size":      size,
		"file_path":      filePath,
	})
}

// ReplySticker writes a successful sendSticker response.
func ReplySticker(w http.ResponseWriter, messageID int) {
	ReplyOK(w, map[string]any{
		"message_id": messageID,
		"date":       1234567890,
		"chat": map[string]any{
			"id":   TestChatID,
			"type": "private",
		},
		"sticker": map[string]any{
			"file_id":        "CAACAgIAAxkBSticker",
			"file_unique_id": "s",
			"type":           "regular",
			"width":          512,
			"height":         512,
			"is_animated":    false,
			"is_video":       false,
		},
	})
}

// ReplyBytes writes raw file content, as the file download endpoint does.
func ReplyBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
