package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"natalia_bot/internal/analytics"
	"natalia_bot/internal/config"
	"natalia_bot/internal/domain"
	"natalia_bot/internal/feature/admin"
	"natalia_bot/internal/feature/user"
	"natalia_bot/internal/logging"
	"natalia_bot/internal/moderation"
	"natalia_bot/internal/room"
	"natalia_bot/internal/store"
	"natalia_bot/internal/templates"
)

const defaultStickerPace = 5 * time.Second

type userToucher interface {
	Touch(ctx context.Context, profile user.Profile, seenAt time.Time) (bool, error)
}

type activityRecorder interface {
	Text(ctx context.Context, msg domain.TextMessage) error
	Sticker(ctx context.Context, msg domain.StickerMessage) error
	Gif(ctx context.Context, msg domain.GifMessage) error
	Join(ctx context.Context, userID, chatID int64) error
	Request(ctx context.Context, userID int64, command string) error
}

type statsSource interface {
	TopStickers(ctx context.Context, since time.Time, limit int) ([]store.Count, error)
	TopGifs(ctx context.Context, limit int) ([]store.Count, error)
	TopGifPosters(ctx context.Context, limit int) ([]store.UserCount, error)
	CommandStats(ctx context.Context, since time.Time) ([]store.CommandDay, error)
	JoinStats(ctx context.Context, since time.Time) ([]store.JoinDay, error)
	HourlyJoins(ctx context.Context, chatID int64, since time.Time) ([]store.Bucket, error)
	HourlyTexts(ctx context.Context, chatID int64, since time.Time) ([]store.Bucket, error)
	HourlyStickers(ctx context.Context, chatID int64, since time.Time) ([]store.Bucket, error)
	TextsSince(ctx context.Context, since time.Time) ([]domain.TextMessage, error)
}

type nameDirectory interface {
	NamesByID(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

type candleSource interface {
	Candles(ctx context.Context) ([]analytics.Candle, error)
}

// Deps are the collaborators the handlers work with. Rooms, Templates and
// Guard are required.
type Deps struct {
	BotUsername    string
	Rooms          *room.Registry
	Templates      *templates.Store
	Policy         *moderation.Policy
	Guard          *admin.Guard
	Users          userToucher
	Recorder       activityRecorder
	Stats          statsSource
	Names          nameDirectory
	Prices         candleSource
	Media          config.Media
	AdminDirectory []config.AdminEntry
	Stopwords      []string
}

// Handler routes inbound messages to command and event handlers.
type Handler struct {
	api       API
	botName   string
	rooms     *room.Registry
	templates *templates.Store
	policy    *moderation.Policy
	guard     *admin.Guard
	users     userToucher
	recorder  activityRecorder
	stats     statsSource
	names     nameDirectory
	prices    candleSource
	media     config.Media
	directory []config.AdminEntry
	stopwords map[string]struct{}
	commands  map[string]command
	logger    *logrus.Entry

	now     func() time.Time
	pace    time.Duration
	shuffle func(n int, swap func(i, j int))
}

// NewHandler validates deps and registers the command table.
func NewHandler(deps Deps, logger *logrus.Entry) (*Handler, error) {
	if deps.Rooms == nil {
		return nil, errors.New("room registry is required")
	}
	if deps.Templates == nil {
		return nil, errors.New("template store is required")
	}
	if deps.Guard == nil {
		return nil, errors.New("admin guard is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	h := &Handler{
		botName:   strings.TrimPrefix(strings.TrimSpace(deps.BotUsername), "@"),
		rooms:     deps.Rooms,
		templates: deps.Templates,
		policy:    deps.Policy,
		guard:     deps.Guard,
		users:     deps.Users,
		recorder:  deps.Recorder,
		stats:     deps.Stats,
		names:     deps.Names,
		prices:    deps.Prices,
		media:     deps.Media,
		directory: deps.AdminDirectory,
		stopwords: analytics.Stopwords(deps.Stopwords),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		pace:      defaultStickerPace,
		shuffle:   rand.Shuffle,
	}
	h.commands = h.commandTable()

	return h, nil
}

func (h *Handler) useAPI(api API) {
	h.api = api
}

// HandleUpdate is the bot's default handler. Non-message updates are only
// logged.
func (h *Handler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
	}
	if meta.userID != 0 {
		fields["user_id"] = meta.userID
	}
	if meta.chatID != 0 {
		fields["chat_id"] = meta.chatID
	}
	h.logger.WithFields(fields).Debug("telegram update received")

	if update.Message == nil {
		return
	}
	h.dispatch(ctx, update.Message)
}

func (h *Handler) dispatch(ctx context.Context, msg *models.Message) {
	if ctx == nil {
		ctx = context.Background()
	}

	kind, name := h.classify(msg)
	log := logging.Enrich(h.logger, logging.Context{
		UserID:    userID(msg.From),
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Command:   name,
	}).WithField("kind", kind.String())

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logging.Fields{
				"event": "handler_panic",
				"panic": fmt.Sprint(r),
			}).Error("handler panicked")
		}
	}()

	if err := h.route(ctx, kind, name, msg); err != nil {
		log.WithField("event", "handler_error").WithError(err).Error("handler failed")
	}
}

// groupRoom resolves the configured room of the message's chat. Unknown
// chats are logged and reported as ok=false.
func (h *Handler) groupRoom(msg *models.Message) (room.Room, bool) {
	r, err := h.rooms.ByChatID(msg.Chat.ID)
	if err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "unknown_room",
			"chat_id": msg.Chat.ID,
		}).Warn("ignoring message from unconfigured chat")
		return room.Room{}, false
	}
	return r, true
}

func (h *Handler) render(key string, args ...any) (string, error) {
	text, err := h.templates.Render(key, args...)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return text, nil
}

func (h *Handler) sendText(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if h.api == nil {
		return nil, errors.New("telegram api is not attached")
	}
	sent, err := h.api.SendMessage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("send message to %v: %w", params.ChatID, err)
	}
	return sent, nil
}

func (h *Handler) sendSticker(ctx context.Context, chatID int64, fileID string) error {
	if h.api == nil {
		return errors.New("telegram api is not attached")
	}
	if strings.TrimSpace(fileID) == "" {
		return nil
	}
	_, err := h.api.SendSticker(ctx, &bot.SendStickerParams{
		ChatID:  chatID,
		Sticker: &models.InputFileString{Data: fileID},
	})
	if err != nil {
		return fmt.Errorf("send sticker to %d: %w", chatID, err)
	}
	return nil
}

func (h *Handler) forward(ctx context.Context, to, from int64, messageID int) error {
	if h.api == nil {
		return errors.New("telegram api is not attached")
	}
	_, err := h.api.ForwardMessage(ctx, &bot.ForwardMessageParams{
		ChatID:     to,
		FromChatID: from,
		MessageID:  messageID,
	})
	if err != nil {
		return fmt.Errorf("forward message %d to %d: %w", messageID, to, err)
	}
	return nil
}

// deleteMessage attempts a deletion and logs its outcome. It never fails the
// caller.
func (h *Handler) deleteMessage(ctx context.Context, chatID int64, messageID int, reason string) DeleteOutcome {
	if h.api == nil {
		return Failed
	}

	ok, err := h.api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	outcome := classifyDelete(ok, err)

	entry := h.logger.WithFields(logging.Fields{
		"event":      "message_delete",
		"chat_id":    chatID,
		"message_id": messageID,
		"reason":     reason,
		"outcome":    outcome.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("message delete failed")
	} else {
		entry.Debug("message deleted")
	}

	return outcome
}

func markdownText(chatID int64, text string) *bot.SendMessageParams {
	disabled := true
	return &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		ParseMode:          models.ParseModeMarkdownV1,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	}
}

func plainText(chatID int64, text string) *bot.SendMessageParams {
	return &bot.SendMessageParams{ChatID: chatID, Text: text}
}

func replyTo(params *bot.SendMessageParams, messageID int) *bot.SendMessageParams {
	params.ReplyParameters = &models.ReplyParameters{MessageID: messageID}
	return params
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
