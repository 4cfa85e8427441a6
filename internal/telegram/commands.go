package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"natalia_bot/internal/logging"
)

type privateReply func(ctx context.Context, msg *models.Message, name string) error

// info wraps an informational command. In groups the sender is told to ask
// privately; in private chats the request is audited and answered.
func (h *Handler) info(command string, reply privateReply) commandFunc {
	return func(ctx context.Context, msg *models.Message) error {
		name := escapeMarkdown(DisplayName(msg.From))

		h.logger.WithFields(logging.Fields{
			"event":   "command_received",
			"command": command,
			"user_id": userID(msg.From),
			"chat_id": msg.Chat.ID,
		}).Info("command received")

		if isGroupChat(msg.Chat) {
			text, err := h.render("pmme", name)
			if err != nil {
				return err
			}
			_, err = h.sendText(ctx, replyTo(markdownText(msg.Chat.ID, text), msg.ID))
			return err
		}

		h.auditRequest(ctx, userID(msg.From), command)

		return reply(ctx, msg, name)
	}
}

func (h *Handler) auditRequest(ctx context.Context, uid int64, command string) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Request(ctx, uid, command); err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "request_audit_error",
			"command": command,
			"user_id": uid,
		}).WithError(err).Warn("failed to audit request")
	}
}

func (h *Handler) replyTemplate(key string) privateReply {
	return func(ctx context.Context, msg *models.Message, _ string) error {
		text, err := h.render(key)
		if err != nil {
			return err
		}
		_, err = h.sendText(ctx, markdownText(msg.Chat.ID, text))
		return err
	}
}

func (h *Handler) replyWithSticker(key string, sticker func() string) privateReply {
	text := h.replyTemplate(key)
	return func(ctx context.Context, msg *models.Message, name string) error {
		if err := h.sendSticker(ctx, msg.Chat.ID, sticker()); err != nil {
			return err
		}
		return text(ctx, msg, name)
	}
}

func (h *Handler) replyStart(ctx context.Context, msg *models.Message, name string) error {
	text, err := h.render("start", name)
	if err != nil {
		return err
	}
	if _, err := h.sendText(ctx, markdownText(msg.Chat.ID, text)); err != nil {
		return err
	}

	if !h.guard.IsAdmin(userID(msg.From)) {
		return nil
	}
	text, err = h.render("admin_start", name)
	if err != nil {
		return err
	}
	_, err = h.sendText(ctx, markdownText(msg.Chat.ID, text))
	return err
}

func (h *Handler) replyAdmins(ctx context.Context, msg *models.Message, _ string) error {
	entries := append(h.directory[:0:0], h.directory...)
	h.shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })

	var b strings.Builder
	b.WriteString("*Admins*\n\n")
	for _, e := range entries {
		b.WriteString(escapeMarkdown(e.Handle) + "\n")
		b.WriteString(escapeMarkdown(e.AdminOf) + "\n")
		b.WriteString("_" + escapeMarkdown(e.About) + "_")
		b.WriteString("\n\n")
	}
	b.WriteString("/start - to go back to home")

	_, err := h.sendText(ctx, markdownText(msg.Chat.ID, b.String()))
	return err
}

func (h *Handler) replyDonation(ctx context.Context, msg *models.Message, _ string) error {
	if h.api == nil {
		return fmt.Errorf("send donation photo: telegram api is not attached")
	}
	if strings.TrimSpace(h.media.DonationPhoto) == "" {
		return fmt.Errorf("send donation photo: no donation photo configured")
	}

	_, err := h.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  msg.Chat.ID,
		Photo:   &models.InputFileString{Data: h.media.DonationPhoto},
		Caption: h.media.DonationCaption,
	})
	if err != nil {
		return fmt.Errorf("send donation photo: %w", err)
	}
	return nil
}

// cmdID answers in any chat with the chat's first name and id.
func (h *Handler) cmdID(ctx context.Context, msg *models.Message) error {
	name := strings.TrimSpace(msg.Chat.FirstName)
	if name == "" {
		name = DisplayName(msg.From)
	}

	text := name + " :: " + strconv.FormatInt(msg.Chat.ID, 10)
	_, err := h.sendText(ctx, replyTo(plainText(msg.Chat.ID, text), msg.ID))
	return err
}
