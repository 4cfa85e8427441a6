// Package domain defines the records the bot persists and the repositories
// that read them back.
package domain

import "time"

// TextMessage is one group text message from a user with a public username.
type TextMessage struct {
	UserID    int64     `bson:"user_id"`
	ChatID    int64     `bson:"chat_id"`
	MessageID int       `bson:"message_id"`
	Username  string    `bson:"username"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

// StickerMessage is one sticker posted in a logged room.
type StickerMessage struct {
	UserID    int64     `bson:"user_id"`
	ChatID    int64     `bson:"chat_id"`
	MessageID int       `bson:"message_id"`
	StickerID string    `bson:"sticker_id"`
	Timestamp time.Time `bson:"timestamp"`
}

// GifMessage is one animation (video/mp4 document) posted in a logged room.
type GifMessage struct {
	UserID    int64     `bson:"user_id"`
	ChatID    int64     `bson:"chat_id"`
	MessageID int       `bson:"message_id"`
	FileID    string    `bson:"file_id"`
	Timestamp time.Time `bson:"timestamp"`
}

// RoomJoin records a member joining a welcome-enabled room.
type RoomJoin struct {
	UserID    int64     `bson:"user_id"`
	ChatID    int64     `bson:"chat_id"`
	Timestamp time.Time `bson:"timestamp"`
}

// Request audits a command answered in a private chat.
type Request struct {
	UserID    int64     `bson:"user_id"`
	Request   string    `bson:"request"`
	Timestamp time.Time `bson:"timestamp"`
}

// SoftLog is a lifecycle notice such as a process start or stop.
type SoftLog struct {
	Comment   string    `bson:"comment"`
	RunID     string    `bson:"run_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}
