// Package transport holds the platform-neutral chat types shared by the
// Telegram adapter, the command router and the notifier.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	ChatTitle    string
	Text         string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender is the minimal outbound surface (used by log sinks and tests).
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// PhotoSender is implemented by adapters that can post an image by URL with a caption.
type PhotoSender interface {
	SendPhoto(ctx context.Context, to ChatTarget, photoURL, caption string, opt *SendOptions) (MessageRef, error)
}

type Adapter interface {
	Sender
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface for adapters that can publish
// a command menu (Telegram setMyCommands).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
