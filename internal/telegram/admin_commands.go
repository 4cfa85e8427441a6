package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"natalia_bot/internal/analytics"
	"natalia_bot/internal/logging"
	"natalia_bot/internal/room"
	"natalia_bot/internal/store"
)

const (
	topStickersWindow = 3 * 24 * time.Hour
	topStickersLimit  = 3
	topGifsLimit      = 5
)

var quotedMessage = regexp.MustCompile(`"(.*?)"`)

// targetRoom resolves the room flagged for a broadcast. When none is
// configured the admin is told and ok is false.
func (h *Handler) targetRoom(ctx context.Context, msg *models.Message, flag room.Flag) (room.Room, bool, error) {
	target, err := h.rooms.ByFlag(flag)
	if err == nil {
		return target, true, nil
	}
	if !errors.Is(err, room.ErrNotFound) {
		return room.Room{}, false, err
	}

	h.logger.WithFields(logging.Fields{
		"event": "flag_room_missing",
		"flag":  string(flag),
	}).Warn("no room configured for flag")

	_, sendErr := h.sendText(ctx, plainText(msg.Chat.ID, fmt.Sprintf("No room is configured with %s", flag)))
	return room.Room{}, false, sendErr
}

func (h *Handler) requireStats() error {
	if h.stats == nil {
		return errors.New("stats provider is not configured")
	}
	return nil
}

func (h *Handler) sendRendered(ctx context.Context, chatID int64, key string, args ...any) (*models.Message, error) {
	text, err := h.render(key, args...)
	if err != nil {
		return nil, err
	}
	return h.sendText(ctx, plainText(chatID, text))
}

func (h *Handler) cmdTopStickers(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagTopStickers)
	if !ok {
		return err
	}

	since := startOfDay(h.now()).Add(-topStickersWindow)
	stickers, err := h.stats.TopStickers(ctx, since, topStickersLimit)
	if err != nil {
		return err
	}

	if _, err := h.sendRendered(ctx, msg.Chat.ID, "topstickersWarning"); err != nil {
		return err
	}
	if _, err := h.sendRendered(ctx, target.ChatID, "topstickersStart"); err != nil {
		return err
	}
	for i, s := range stickers {
		if i > 0 {
			if err := sleepCtx(ctx, h.pace); err != nil {
				return err
			}
		}
		if _, err := h.sendRendered(ctx, target.ChatID, "topstickersCenter", s.Total); err != nil {
			return err
		}
		if err := h.sendSticker(ctx, target.ChatID, s.ID); err != nil {
			return err
		}
	}

	_, err = h.sendRendered(ctx, msg.Chat.ID, "topstickersEnd", target.Name)
	return err
}

func (h *Handler) cmdTopGif(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagTopGifs)
	if !ok {
		return err
	}

	gifs, err := h.stats.TopGifs(ctx, topGifsLimit)
	if err != nil {
		return err
	}
	if len(gifs) == 0 {
		_, err := h.sendText(ctx, plainText(msg.Chat.ID, "No gifs recorded yet"))
		return err
	}

	if _, err := h.sendRendered(ctx, target.ChatID, "topgifsStart", gifs[0].Total); err != nil {
		return err
	}
	if _, err := h.api.SendAnimation(ctx, &bot.SendAnimationParams{
		ChatID:    target.ChatID,
		Animation: &models.InputFileString{Data: gifs[0].ID},
	}); err != nil {
		return fmt.Errorf("send top gif: %w", err)
	}

	_, err = h.sendRendered(ctx, msg.Chat.ID, "topgifsEnd", target.Name)
	return err
}

func (h *Handler) cmdTopGifPosters(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	if h.names == nil {
		return errors.New("user directory is not configured")
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagTopGifs)
	if !ok {
		return err
	}

	posters, err := h.stats.TopGifPosters(ctx, topGifsLimit)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(posters))
	for _, p := range posters {
		ids = append(ids, p.UserID)
	}
	names, err := h.names.NamesByID(ctx, ids)
	if err != nil {
		return err
	}

	text, err := h.render("topgifpostersStart", target.Name)
	if err != nil {
		return err
	}
	for i, p := range posters {
		name, known := names[p.UserID]
		if !known {
			continue
		}
		line, err := h.render("topgifpostersCenter", i+1, name, p.Total)
		if err != nil {
			return err
		}
		text += line
	}

	sent, err := h.sendText(ctx, plainText(target.ChatID, text))
	if err != nil {
		return err
	}
	if err := h.forward(ctx, msg.Chat.ID, target.ChatID, sent.ID); err != nil {
		return err
	}

	_, err = h.sendRendered(ctx, msg.Chat.ID, "topgifpostersEnd", target.Name)
	return err
}

func (h *Handler) cmdTodayInWords(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagWordcloud)
	if !ok {
		return err
	}

	texts, err := h.stats.TextsSince(ctx, startOfDay(h.now()))
	if err != nil {
		return err
	}
	messages := make([]string, 0, len(texts))
	for _, t := range texts {
		messages = append(messages, t.Message)
	}

	counts := analytics.WordFrequencies(messages, h.stopwords)
	posted, err := h.sendCloud(ctx, msg, target, "Today in a picture", analytics.TodayCloud, counts)
	if !posted {
		return err
	}

	_, err = h.sendRendered(ctx, msg.Chat.ID, "todayinWords", target.Name)
	return err
}

func (h *Handler) cmdTodaysUsers(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagTodaysUsers)
	if !ok {
		return err
	}

	if _, err := h.sendText(ctx, plainText(msg.Chat.ID, "Okay gimme a second for this one.. it takes some resources..")); err != nil {
		return err
	}

	texts, err := h.stats.TextsSince(ctx, startOfDay(h.now()))
	if err != nil {
		return err
	}
	posted, err := h.sendCloud(ctx, msg, target, "Todays Users", analytics.UsersCloud, analytics.UsernameFrequencies(texts))
	if !posted {
		return err
	}

	_, err = h.sendText(ctx, plainText(msg.Chat.ID, "Posted today in pictures to "+target.Name))
	return err
}

// sendCloud renders counts as a word cloud and posts it to target. With
// nothing to draw the admin is told instead and posted is false.
func (h *Handler) sendCloud(ctx context.Context, msg *models.Message, target room.Room, caption string, style analytics.CloudStyle, counts []analytics.WordCount) (posted bool, err error) {
	var buf bytes.Buffer
	err = analytics.RenderWordCloud(&buf, style, counts)
	if errors.Is(err, analytics.ErrNoData) {
		_, err = h.sendText(ctx, plainText(msg.Chat.ID, "Nothing to draw yet today"))
		return false, err
	}
	if err != nil {
		return false, err
	}

	if err := h.sendPNG(ctx, target.ChatID, "words.png", caption, &buf); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Handler) sendPNG(ctx context.Context, chatID int64, filename, caption string, data *bytes.Buffer) error {
	_, err := h.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: filename, Data: data},
		Caption: caption,
	})
	if err != nil {
		return fmt.Errorf("send %s to %d: %w", filename, chatID, err)
	}
	return nil
}

func (h *Handler) cmdPromoteTS(ctx context.Context, msg *models.Message) error {
	name := DisplayName(msg.From)

	quoted := quotedMessage.FindStringSubmatch(msg.Text)
	if quoted == nil {
		_, err := h.sendText(ctx, plainText(msg.Chat.ID, "Please include a message in quotes to spam/shill the teamspeak message"))
		return err
	}

	rooms := h.rooms.AllByFlag(room.FlagPromoteTS)
	if len(rooms) == 0 {
		_, err := h.sendText(ctx, plainText(msg.Chat.ID, fmt.Sprintf("No room is configured with %s", room.FlagPromoteTS)))
		return err
	}

	footer, err := h.render("promotetsFooter", escapeMarkdown("@"+h.botName))
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range rooms {
		if err := h.promoteIn(ctx, r, quoted[1], name, footer); err != nil {
			errs = append(errs, fmt.Errorf("promote in %s: %w", r.Name, err))
			continue
		}
		if _, err := h.sendText(ctx, markdownText(msg.Chat.ID, "Broadcast sent to "+escapeMarkdown(r.Name))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) promoteIn(ctx context.Context, r room.Room, message, name, footer string) error {
	if err := h.sendSticker(ctx, r.ChatID, h.media.PromoteSticker); err != nil {
		return err
	}

	text := message + "\n-------------------\n*/announcement from " + escapeMarkdown(name) + "*"
	sent, err := h.sendText(ctx, markdownText(r.ChatID, text))
	if err != nil {
		return err
	}

	if r.Has(room.FlagPromoteTSPin) {
		if _, err := h.api.PinChatMessage(ctx, &bot.PinChatMessageParams{
			ChatID:              r.ChatID,
			MessageID:           sent.ID,
			DisableNotification: true,
		}); err != nil {
			return fmt.Errorf("pin announcement: %w", err)
		}
	}

	_, err = h.sendText(ctx, markdownText(r.ChatID, footer))
	return err
}

func (h *Handler) cmdShill(ctx context.Context, msg *models.Message) error {
	name := DisplayName(msg.From)

	text, err := h.render("shill")
	if err != nil {
		return err
	}

	if owner := h.guard.Owner(); owner != 0 {
		if _, err := h.sendText(ctx, markdownText(owner, escapeMarkdown(name)+" just shilled")); err != nil {
			return err
		}
	}

	rooms := h.rooms.AllByFlag(room.FlagShill)
	if len(rooms) == 0 {
		_, err := h.sendText(ctx, plainText(msg.Chat.ID, fmt.Sprintf("No room is configured with %s", room.FlagShill)))
		return err
	}

	var errs []error
	for _, r := range rooms {
		if _, err := h.sendText(ctx, markdownText(r.ChatID, text)); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := h.sendText(ctx, markdownText(msg.Chat.ID, "Shilled in "+escapeMarkdown(r.Name))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) cmdCommandStats(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	rows, err := h.stats.CommandStats(ctx, startOfMonth(h.now()))
	if err != nil {
		return err
	}

	params := markdownText(msg.Chat.ID, analytics.CommandReport(rows))
	params.LinkPreviewOptions = nil
	_, err = h.sendText(ctx, params)
	return err
}

func (h *Handler) cmdJoinStats(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	rows, err := h.stats.JoinStats(ctx, startOfMonth(h.now()))
	if err != nil {
		return err
	}

	roomName := func(id int64) string { return escapeMarkdown(h.rooms.NameOf(id)) }
	params := markdownText(msg.Chat.ID, analytics.JoinReport(rows, roomName))
	params.LinkPreviewOptions = nil
	_, err = h.sendText(ctx, params)
	return err
}

func (h *Handler) cmdPriceOverlay(ctx context.Context, msg *models.Message) error {
	if err := h.requireStats(); err != nil {
		return err
	}
	if h.prices == nil {
		return errors.New("price feed is not configured")
	}
	target, ok, err := h.targetRoom(ctx, msg, room.FlagPriceOverlay)
	if !ok {
		return err
	}

	if _, err := h.sendText(ctx, plainText(msg.Chat.ID, "Processing data")); err != nil {
		return err
	}

	candles, err := h.prices.Candles(ctx)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return analytics.ErrNoData
	}

	in := analytics.Overlay{Title: "Price", Candles: candles}
	since := candles[0].Time
	for _, q := range []struct {
		into  *[]store.Bucket
		query func(context.Context, int64, time.Time) ([]store.Bucket, error)
	}{
		{&in.Stickers, h.stats.HourlyStickers},
		{&in.Messages, h.stats.HourlyTexts},
		{&in.Joins, h.stats.HourlyJoins},
	} {
		buckets, err := q.query(ctx, target.ChatID, since)
		if err != nil {
			return err
		}
		*q.into = buckets
	}

	var buf bytes.Buffer
	if err := analytics.RenderOverlay(&buf, in); err != nil {
		return err
	}

	caption := target.Name + " Messages, Stickers & User joins per hour over price"
	if err := h.sendPNG(ctx, target.ChatID, "overlay.png", caption, &buf); err != nil {
		return err
	}

	_, err = h.sendText(ctx, plainText(msg.Chat.ID, "'"+caption+"' posted to "+target.Name))
	return err
}

// cmdSpecial sends an emoji rendering check to the owner. Only the owner may
// trigger it.
func (h *Handler) cmdSpecial(ctx context.Context, msg *models.Message) error {
	if !h.guard.IsOwner(userID(msg.From)) {
		return nil
	}
	_, err := h.sendText(ctx, plainText(h.guard.Owner(), "❤💛💚💙🖤"))
	return err
}
