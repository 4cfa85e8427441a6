package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"natalia_bot/internal/logging"
	"natalia_bot/internal/moderation"
	"natalia_bot/internal/room"
)

// handleLinksAndHashtags runs the counter-shill reaction and then, on its
// own, the forwarding rules.
func (h *Handler) handleLinksAndHashtags(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok {
		return nil
	}

	var errs []error
	if r.Has(room.FlagCounterShill) && h.policy.IsShill(msg.Text) {
		errs = append(errs, h.counterShill(ctx, r, msg))
	}
	if h.shouldForward(r, msg) {
		errs = append(errs, h.forward(ctx, r.ForwardChannel, r.ChatID, msg.ID))
	}
	return errors.Join(errs...)
}

// counterShill warns the admin room, forwards the message there, deletes it,
// posts the rebuttal and removes the sender. Every step is attempted even
// when an earlier one failed.
func (h *Handler) counterShill(ctx context.Context, r room.Room, msg *models.Message) error {
	name := DisplayName(msg.From)
	log := h.logger.WithFields(logging.Fields{
		"event":   "counter_shill",
		"chat_id": r.ChatID,
		"user_id": userID(msg.From),
	})
	log.Info("referral spam detected")

	var errs []error
	step := func(label string, err error) {
		if err == nil {
			return
		}
		log.WithField("step", label).WithError(err).Warn("counter-shill step failed")
		errs = append(errs, fmt.Errorf("counter-shill %s: %w", label, err))
	}

	rebuttal, rebuttalErr := h.rebuttal(name, msg.Text)

	if r.AdminRoomID == 0 {
		step("warn_admins", errors.New("room has no admin room"))
		step("forward_to_admins", errors.New("room has no admin room"))
	} else {
		warning, err := h.render("countershillAdminWarning", escapeMarkdown(name), escapeMarkdown(r.Name))
		if err == nil {
			_, err = h.sendText(ctx, markdownText(r.AdminRoomID, warning))
		}
		step("warn_admins", err)
		step("forward_to_admins", h.forward(ctx, r.AdminRoomID, r.ChatID, msg.ID))
	}

	if outcome := h.deleteMessage(ctx, r.ChatID, msg.ID, "counter_shill"); outcome != Deleted {
		step("delete", fmt.Errorf("delete outcome %s", outcome))
	}

	if rebuttalErr == nil {
		params := plainText(r.ChatID, rebuttal)
		disabled := true
		params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: &disabled}
		_, rebuttalErr = h.sendText(ctx, params)
	}
	step("rebuttal", rebuttalErr)

	step("kick", h.kick(ctx, r.ChatID, userID(msg.From)))

	return errors.Join(errs...)
}

func (h *Handler) rebuttal(name, text string) (string, error) {
	reply, err := h.render("countershillReplyStart")
	if err != nil {
		return "", err
	}
	for _, rule := range h.policy.MatchingRules(text) {
		line, err := h.render("countershillReplyCenter", name, rule.Title, rule.Link)
		if err != nil {
			return "", err
		}
		reply += line
	}
	return reply, nil
}

func (h *Handler) kick(ctx context.Context, chatID, uid int64) error {
	if h.api == nil {
		return errors.New("telegram api is not attached")
	}
	if _, err := h.api.BanChatMember(ctx, &bot.BanChatMemberParams{ChatID: chatID, UserID: uid}); err != nil {
		return fmt.Errorf("ban member %d in %d: %w", uid, chatID, err)
	}
	return nil
}

// shouldForward matches hashtag entities against the room's forward hashtag
// and the whole text against the forward URL pattern.
func (h *Handler) shouldForward(r room.Room, msg *models.Message) bool {
	if r.ForwardChannel == 0 {
		return false
	}

	if r.ForwardHashtag != "" {
		for _, e := range msg.Entities {
			if e.Type != models.MessageEntityTypeHashtag {
				continue
			}
			if moderation.EntityText(msg.Text, e.Offset, e.Length) == r.ForwardHashtag {
				return true
			}
		}
	}

	return h.policy.ShouldForwardURL(msg.Text)
}
