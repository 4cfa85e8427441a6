package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"natalia_bot/internal/domain"
	"natalia_bot/internal/feature/user"
	"natalia_bot/internal/logging"
	"natalia_bot/internal/moderation"
	"natalia_bot/internal/room"
)

const profilePicReminder = " - **Also, please set a profile pic!!**"

var uncompressedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/jpg":  true,
	"image/tiff": true,
}

func (h *Handler) handleNewMembers(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok {
		return nil
	}

	var errs []error
	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		if member.IsBot && strings.EqualFold(member.Username, h.botName) {
			h.logger.WithFields(logging.Fields{
				"event":   "bot_added",
				"chat_id": r.ChatID,
			}).Info("bot was added to a chat")
			continue
		}
		if err := h.welcome(ctx, r, msg, member); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// welcome greets one new member: the join is recorded, the previous welcome
// and join notice are removed, a new welcome replies to the join notice and
// the member is muted for the room's restriction period. When one notice adds
// several members the notice itself stays so every welcome can reply to it.
func (h *Handler) welcome(ctx context.Context, r room.Room, msg *models.Message, member *models.User) error {
	var errs []error

	if r.Has(room.FlagWelcome) {
		if h.recorder != nil {
			if err := h.recorder.Join(ctx, member.ID, r.ChatID); err != nil {
				errs = append(errs, err)
			}
		}

		slots := h.rooms.Slots(r.ChatID)
		if slots.PriorWelcomeID > 0 {
			h.deleteMessage(ctx, r.ChatID, slots.PriorWelcomeID, "prior_welcome")
			if slots.PriorJoinID != msg.ID {
				h.deleteMessage(ctx, r.ChatID, slots.PriorJoinID, "prior_join")
			}
		}

		if err := h.sendWelcome(ctx, r, msg, member); err != nil {
			errs = append(errs, err)
		}
	}

	if r.DaysRestrictionOnJoin > 0 {
		if err := h.restrict(ctx, r, member.ID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (h *Handler) sendWelcome(ctx context.Context, r room.Room, msg *models.Message, member *models.User) error {
	name := DisplayName(member)

	key := "welcome"
	if r.SpecialWelcome != "" {
		key = r.SpecialWelcome
	}
	text, err := h.render(key, name)
	if err != nil {
		return err
	}
	if !h.hasProfilePhoto(ctx, member.ID) {
		text += profilePicReminder
	}

	sent, err := h.sendText(ctx, replyTo(plainText(r.ChatID, text), msg.ID))
	if err != nil {
		return err
	}
	h.rooms.RememberWelcome(r.ChatID, sent.ID, msg.ID)

	h.logger.WithFields(logging.Fields{
		"event":      "member_welcomed",
		"chat_id":    r.ChatID,
		"user_id":    member.ID,
		"message_id": sent.ID,
	}).Info("welcomed new member")
	return nil
}

// hasProfilePhoto reports true when the lookup fails so nobody is nagged
// because of an API error.
func (h *Handler) hasProfilePhoto(ctx context.Context, uid int64) bool {
	photos, err := h.api.GetUserProfilePhotos(ctx, &bot.GetUserProfilePhotosParams{UserID: uid, Limit: 1})
	if err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "profile_photos_error",
			"user_id": uid,
		}).WithError(err).Warn("failed to fetch profile photos")
		return true
	}
	return photos != nil && photos.TotalCount > 0
}

func (h *Handler) restrict(ctx context.Context, r room.Room, uid int64) error {
	until := h.now().AddDate(0, 0, r.DaysRestrictionOnJoin)
	_, err := h.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      r.ChatID,
		UserID:      uid,
		Permissions: &models.ChatPermissions{},
		UntilDate:   int(until.Unix()),
	})
	if err != nil {
		return fmt.Errorf("restrict member %d in %d: %w", uid, r.ChatID, err)
	}
	return nil
}

func (h *Handler) handleLeftMember(msg *models.Message) {
	h.logger.WithFields(logging.Fields{
		"event":   "member_left",
		"chat_id": msg.Chat.ID,
		"user_id": userID(msg.LeftChatMember),
	}).Info("member left chat")
}

func (h *Handler) handleVideo(msg *models.Message) {
	h.logger.WithFields(logging.Fields{
		"event":   "video_received",
		"chat_id": msg.Chat.ID,
		"user_id": userID(msg.From),
	}).Debug("video received")
}

// handlePhoto forwards photos whose caption carries the room's forward
// hashtag.
func (h *Handler) handlePhoto(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok {
		return nil
	}
	if r.ForwardHashtag == "" || r.ForwardChannel == 0 {
		return nil
	}
	if !moderation.ContainsHashtag(msg.Caption, r.ForwardHashtag) {
		return nil
	}
	return h.forward(ctx, r.ForwardChannel, r.ChatID, msg.ID)
}

func (h *Handler) handleSticker(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok || !r.Has(room.FlagLog) || username(msg.From) == "" {
		return nil
	}
	if h.recorder == nil {
		return errors.New("activity recorder is not configured")
	}

	err := h.recorder.Sticker(ctx, domain.StickerMessage{
		UserID:    userID(msg.From),
		ChatID:    r.ChatID,
		MessageID: msg.ID,
		StickerID: msg.Sticker.FileID,
	})
	return errors.Join(err, h.touch(ctx, msg.From))
}

func (h *Handler) handleDocument(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok {
		return nil
	}

	mime := strings.ToLower(msg.Document.MimeType)
	switch {
	case uncompressedImageTypes[mime] && r.Has(room.FlagNoUncompressedImages):
		return h.remindCompressed(ctx, r, msg)
	case mime == "video/mp4" && r.Has(room.FlagLog) && username(msg.From) != "":
		if h.recorder == nil {
			return errors.New("activity recorder is not configured")
		}
		err := h.recorder.Gif(ctx, domain.GifMessage{
			UserID:    userID(msg.From),
			ChatID:    r.ChatID,
			MessageID: msg.ID,
			FileID:    msg.Document.FileID,
		})
		return errors.Join(err, h.touch(ctx, msg.From))
	default:
		return nil
	}
}

// remindCompressed replaces an uncompressed image with a reminder. At most
// one reminder stays in the room.
func (h *Handler) remindCompressed(ctx context.Context, r room.Room, msg *models.Message) error {
	if prior := h.rooms.Slots(r.ChatID).UncompressedReminderID; prior > 0 {
		h.deleteMessage(ctx, r.ChatID, prior, "prior_uncompressed_reminder")
	}
	h.deleteMessage(ctx, r.ChatID, msg.ID, "uncompressed_image")

	text, err := h.render("uncompressedImage", escapeMarkdown(DisplayName(msg.From)))
	if err != nil {
		return err
	}
	sent, err := h.sendText(ctx, markdownText(r.ChatID, text))
	if err != nil {
		return err
	}
	h.rooms.SwapUncompressedReminder(r.ChatID, sent.ID)
	return nil
}

func (h *Handler) handlePrivateText(ctx context.Context, msg *models.Message) error {
	h.logger.WithFields(logging.Fields{
		"event":   "private_message",
		"user_id": userID(msg.From),
	}).Info("private message received")

	text, err := h.render("start", escapeMarkdown(DisplayName(msg.From)))
	if err != nil {
		return err
	}
	_, err = h.sendText(ctx, markdownText(msg.Chat.ID, text))
	return err
}

// handleGroupText stores the message and refreshes the sender. Senders
// without a username are not stored.
func (h *Handler) handleGroupText(ctx context.Context, msg *models.Message) error {
	r, ok := h.groupRoom(msg)
	if !ok {
		return nil
	}

	handle := username(msg.From)
	if handle == "" {
		h.logger.WithFields(logging.Fields{
			"event":   "text_skipped",
			"chat_id": r.ChatID,
			"user_id": userID(msg.From),
		}).Debug("sender has no username, message not stored")
		return nil
	}
	if h.recorder == nil {
		return errors.New("activity recorder is not configured")
	}

	err := h.recorder.Text(ctx, domain.TextMessage{
		UserID:    userID(msg.From),
		ChatID:    r.ChatID,
		MessageID: msg.ID,
		Username:  handle,
		Message:   msg.Text,
	})
	return errors.Join(err, h.touch(ctx, msg.From))
}

func (h *Handler) touch(ctx context.Context, from *models.User) error {
	if h.users == nil || from == nil {
		return nil
	}
	_, err := h.users.Touch(ctx, user.Profile{
		UserID:   from.ID,
		Name:     DisplayName(from),
		Username: username(from),
	}, h.now())
	return err
}

