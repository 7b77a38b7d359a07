package testutil

import "github.com/prilive-com/circlebot/tg"

// Test constants for consistent test data.
const (
	// TestToken is a valid-format bot token for testing.
	TestToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"

	// TestChatID is a test chat ID.
	TestChatID = int64(123456789)

	// TestUserID is a test user ID.
	TestUserID = int64(987654321)

	// TestBotID is a test bot ID.
	TestBotID = int64(123456789)

	// TestUsername is a test username.
	TestUsername = "testuser"

	// TestBotUsername is a test bot username.
	TestBotUsername = "testbot"

	// TestFileID is the file_id used by media fixtures.
	TestFileID = "AgACAgIAAxkBAAIBZ2Test"

	// TestFilePath is the file_path returned for TestFileID.
	TestFilePath = "photos/file_1.jpg"
)

// TestUser returns a test user fixture.
func TestUser() *tg.User {
	return &tg.User{
		ID:        TestUserID,
		IsBot:     false,
		FirstName: "Test",
		LastName:  "User",
		Username:  TestUsername,
	}
}

// TestBot returns a test bot user fixture.
func TestBot() *tg.User {
	return &tg.User{
		ID:        TestBotID,
		IsBot:     true,
		FirstName: "Test Bot",
		Username:  TestBotUsername,
	}
}

// TestChat returns a test private chat fixture.
func TestChat() *tg.Chat {
	return &tg.Chat{
		ID:        TestChatID,
		Type:      "private",
		FirstName: "Test",
		LastName:  "User",
		Username:  TestUsername,
	}
}

// TestGroupChat returns a test group chat fixture.
func TestGroupChat(id int64, title string) *tg.Chat {
	return &tg.Chat{
		ID:    id,
		Type:  "group",
		Title: title,
	}
}

// TestMessage returns a test message fixture.
func TestMessage(messageID int, text string) *tg.Message {
	return &tg.Message{
		MessageID: messageID,
		Date:      1234567890,
		Chat:      TestChat(),
		From:      TestUser(),
		Text:      text,
	}
}

// TestPhotoMessage returns a photo message with the given caption.
// The largest size references TestFileID.
func TestPhotoMessage(messageID int, caption string) *tg.Message {
	msg := TestMessage(messageID, "")
	msg.Caption = caption
	msg.Photo = []tg.PhotoSize{
		{FileID: "thumb", FileUniqueID: "t", Width: 90, Height: 90, FileSize: 1024},
		{FileID: TestFileID, FileUniqueID: "u", Width: 800, Height: 600, FileSize: 40960},
	}
	return msg
}

// TestVideoMessage returns a video message with the given caption and MIME type.
func TestVideoMessage(messageID int, caption, mimeType string) *tg.Message {
	msg := TestMessage(messageID, "")
	msg.Caption = caption
	msg.Video = &tg.Video{
		FileID:       TestFileID,
		FileUniqueID: "v",
		Width:        640,
		Height:       480,
		Duration:     3,
		MimeType:     mimeType,
		FileSize:     204800,
	}
	return msg
}

// TestReply returns a text message replying to target.
func TestReply(messageID int, text string, target *tg.Message) *tg.Message {
	msg := TestMessage(messageID, text)
	msg.ReplyToMessage = target
	return msg
}

// TestUpdate returns a test update fixture with a message.
func TestUpdate(updateID int, text string) tg.Update {
	return tg.Update{
		UpdateID: updateID,
		Message:  TestMessage(1, text),
	}
}

// TestUpdateWithMessage returns a test update fixture with a custom message.
func TestUpdateWithMessage(updateID int, msg *tg.Message) tg.Update {
	return tg.Update{
		UpdateID: updateID,
		Message:  msg,
	}
}

// TestFile returns the getFile result for TestFileID.
func TestFile(size int64) *tg.File {
	return &tg.File{
		FileID:       TestFileID,
		FileUniqueID: "u",
		FileSize:     size,
		FilePath:     TestFilePath,
	}
}
