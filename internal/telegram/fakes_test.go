package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"natalia_bot/internal/analytics"
	"natalia_bot/internal/config"
	"natalia_bot/internal/domain"
	"natalia_bot/internal/feature/admin"
	"natalia_bot/internal/feature/user"
	"natalia_bot/internal/moderation"
	"natalia_bot/internal/room"
	"natalia_bot/internal/store"
	"natalia_bot/internal/templates"
)

const (
	testGroupID = int64(-1001)
	testAdminID = int64(-2002)
	testFeedID  = int64(-3003)
	testAdmin   = int64(7)
	testOwner   = int64(9)
)

var testNow = time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)

type apiCall struct {
	method    string
	chatID    any
	messageID int
	userID    int64
	text      string
	fileID    string
	until     int
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	nextID   int
	failures map[string]error
	panics   map[string]any
	photos   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100, failures: map[string]error{}, panics: map[string]any{}, photos: 1}
}

func (f *fakeAPI) record(c apiCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if v, ok := f.panics[c.method]; ok {
		panic(v)
	}
	return f.failures[c.method]
}

func (f *fakeAPI) message(chatID any) *models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id, _ := chatID.(int64)
	return &models.Message{ID: f.nextID, Chat: models.Chat{ID: id}}
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeAPI) callsOf(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func fileData(file models.InputFile) string {
	if s, ok := file.(*models.InputFileString); ok {
		return s.Data
	}
	if u, ok := file.(*models.InputFileUpload); ok {
		return u.Filename
	}
	return ""
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	c := apiCall{method: "SendMessage", chatID: p.ChatID, text: p.Text}
	if p.ReplyParameters != nil {
		c.messageID = p.ReplyParameters.MessageID
	}
	if err := f.record(c); err != nil {
		return nil, err
	}
	return f.message(p.ChatID), nil
}

func (f *fakeAPI) SendSticker(_ context.Context, p *bot.SendStickerParams) (*models.Message, error) {
	if err := f.record(apiCall{method: "SendSticker", chatID: p.ChatID, fileID: fileData(p.Sticker)}); err != nil {
		return nil, err
	}
	return f.message(p.ChatID), nil
}

func (f *fakeAPI) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	if err := f.record(apiCall{method: "SendPhoto", chatID: p.ChatID, text: p.Caption, fileID: fileData(p.Photo)}); err != nil {
		return nil, err
	}
	return f.message(p.ChatID), nil
}

func (f *fakeAPI) SendAnimation(_ context.Context, p *bot.SendAnimationParams) (*models.Message, error) {
	if err := f.record(apiCall{method: "SendAnimation", chatID: p.ChatID, fileID: fileData(p.Animation)}); err != nil {
		return nil, err
	}
	return f.message(p.ChatID), nil
}

func (f *fakeAPI) ForwardMessage(_ context.Context, p *bot.ForwardMessageParams) (*models.Message, error) {
	if err := f.record(apiCall{method: "ForwardMessage", chatID: p.ChatID, messageID: p.MessageID}); err != nil {
		return nil, err
	}
	return f.message(p.ChatID), nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	if err := f.record(apiCall{method: "DeleteMessage", chatID: p.ChatID, messageID: p.MessageID}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) RestrictChatMember(_ context.Context, p *bot.RestrictChatMemberParams) (bool, error) {
	if err := f.record(apiCall{method: "RestrictChatMember", chatID: p.ChatID, userID: p.UserID, until: p.UntilDate}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) BanChatMember(_ context.Context, p *bot.BanChatMemberParams) (bool, error) {
	if err := f.record(apiCall{method: "BanChatMember", chatID: p.ChatID, userID: p.UserID}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) PinChatMessage(_ context.Context, p *bot.PinChatMessageParams) (bool, error) {
	if err := f.record(apiCall{method: "PinChatMessage", chatID: p.ChatID, messageID: p.MessageID}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAPI) GetUserProfilePhotos(_ context.Context, p *bot.GetUserProfilePhotosParams) (*models.UserProfilePhotos, error) {
	if err := f.record(apiCall{method: "GetUserProfilePhotos", userID: p.UserID}); err != nil {
		return nil, err
	}
	return &models.UserProfilePhotos{TotalCount: f.photos}, nil
}

type fakeRecorder struct {
	texts    []domain.TextMessage
	stickers []domain.StickerMessage
	gifs     []domain.GifMessage
	joins    [][2]int64
	requests []string
	err      error
}

func (f *fakeRecorder) Text(_ context.Context, msg domain.TextMessage) error {
	f.texts = append(f.texts, msg)
	return f.err
}

func (f *fakeRecorder) Sticker(_ context.Context, msg domain.StickerMessage) error {
	f.stickers = append(f.stickers, msg)
	return f.err
}

func (f *fakeRecorder) Gif(_ context.Context, msg domain.GifMessage) error {
	f.gifs = append(f.gifs, msg)
	return f.err
}

func (f *fakeRecorder) Join(_ context.Context, userID, chatID int64) error {
	f.joins = append(f.joins, [2]int64{userID, chatID})
	return f.err
}

func (f *fakeRecorder) Request(_ context.Context, _ int64, command string) error {
	f.requests = append(f.requests, command)
	return f.err
}

func (f *fakeRecorder) writes() int {
	return len(f.texts) + len(f.stickers) + len(f.gifs) + len(f.joins) + len(f.requests)
}

type fakeUsers struct {
	profiles []user.Profile
}

func (f *fakeUsers) Touch(_ context.Context, profile user.Profile, _ time.Time) (bool, error) {
	f.profiles = append(f.profiles, profile)
	return len(f.profiles) == 1, nil
}

type fakeStats struct {
	stickers  []store.Count
	gifs      []store.Count
	posters   []store.UserCount
	commands  []store.CommandDay
	joins     []store.JoinDay
	buckets   []store.Bucket
	texts     []domain.TextMessage
	lastSince time.Time
	calls     int
}

func (f *fakeStats) TopStickers(_ context.Context, since time.Time, _ int) ([]store.Count, error) {
	f.calls++
	f.lastSince = since
	return f.stickers, nil
}

func (f *fakeStats) TopGifs(context.Context, int) ([]store.Count, error) {
	f.calls++
	return f.gifs, nil
}

func (f *fakeStats) TopGifPosters(context.Context, int) ([]store.UserCount, error) {
	f.calls++
	return f.posters, nil
}

func (f *fakeStats) CommandStats(_ context.Context, since time.Time) ([]store.CommandDay, error) {
	f.calls++
	f.lastSince = since
	return f.commands, nil
}

func (f *fakeStats) JoinStats(_ context.Context, since time.Time) ([]store.JoinDay, error) {
	f.calls++
	f.lastSince = since
	return f.joins, nil
}

func (f *fakeStats) HourlyJoins(context.Context, int64, time.Time) ([]store.Bucket, error) {
	f.calls++
	return f.buckets, nil
}

func (f *fakeStats) HourlyTexts(context.Context, int64, time.Time) ([]store.Bucket, error) {
	f.calls++
	return f.buckets, nil
}

func (f *fakeStats) HourlyStickers(context.Context, int64, time.Time) ([]store.Bucket, error) {
	f.calls++
	return f.buckets, nil
}

func (f *fakeStats) TextsSince(_ context.Context, since time.Time) ([]domain.TextMessage, error) {
	f.calls++
	f.lastSince = since
	return f.texts, nil
}

type fakeNames map[int64]string

func (f fakeNames) NamesByID(context.Context, []int64) (map[int64]string, error) {
	return f, nil
}

type fakePrices struct {
	candles []analytics.Candle
	err     error
}

func (f fakePrices) Candles(context.Context) ([]analytics.Candle, error) {
	return f.candles, f.err
}

var testTemplates = map[string][]string{
	"pmme":                     {"%s, message me privately"},
	"welcome":                  {"Welcome %s!"},
	"vip_welcome":              {"Very special welcome %s"},
	"start":                    {"Hi %s"},
	"admin_start":              {"Admin menu for %s"},
	"about":                    {"About us"},
	"rules":                    {"Be nice"},
	"teamspeak":                {"Teamspeak info"},
	"teamspeakbadges":          {"Badges"},
	"telegram":                 {"Telegram rooms"},
	"livestream":               {"Livestream"},
	"exchanges":                {"Exchanges"},
	"uncompressedImage":        {"%s, compress your images"},
	"shill":                    {"Join the teamspeak"},
	"promotetsFooter":          {"Message me (%s)"},
	"topstickersWarning":       {"Working on it"},
	"topstickersStart":         {"Top stickers"},
	"topstickersCenter":        {"Used {} times"},
	"topstickersEnd":           {"Posted top stickers to {}"},
	"topgifsStart":             {"Top gif, posted {} times"},
	"topgifsEnd":               {"Posted top gif to {}"},
	"topgifpostersStart":       {"Top gif posters of {}\n"},
	"topgifpostersCenter":      {"{}. {} - {}\n"},
	"topgifpostersEnd":         {"Posted top gif posters to {}"},
	"todayinWords":             {"Posted today in words to {}"},
	"countershillReplyStart":   {"No referral links.\n"},
	"countershillReplyCenter":  {"{}, {}: {}\n"},
	"countershillAdminWarning": {"*{}* just shilled in {}"},
}

type testEnv struct {
	handler  *Handler
	api      *fakeAPI
	recorder *fakeRecorder
	users    *fakeUsers
	stats    *fakeStats
	rooms    *room.Registry
	hook     *logtest.Hook
}

func defaultRoomSpecs() []config.RoomSpec {
	return []config.RoomSpec{
		{
			ID:   config.ChatID(testGroupID),
			Name: "Main",
			Flags: map[string]bool{
				"is_log":                    true,
				"is_welcome":                true,
				"is_countershill":           true,
				"is_top_stickers":           true,
				"is_top_gifs":               true,
				"is_wordcloud":              true,
				"is_todaysusers":            true,
				"is_promotets":              true,
				"is_shill":                  true,
				"is_price_overlay":          true,
				"is_no_uncompressed_images": true,
			},
			DaysRestrictionOnJoin: 1,
			PriorWelcomeMessageID: 42,
			PriorJoinMessageID:    41,
			AdminRoomID:           config.ChatID(testAdminID),
			ForwardChannel:        config.ChatID(testFeedID),
			ForwardHashtag:        "#news",
		},
		{
			ID:    config.ChatID(testAdminID),
			Name:  "Admins",
			Flags: map[string]bool{"is_promotets": true, "is_promotets_pin": true},
		},
	}
}

func newTestEnv(t *testing.T, specs ...config.RoomSpec) *testEnv {
	t.Helper()

	if len(specs) == 0 {
		specs = defaultRoomSpecs()
	}
	rooms, err := room.NewRegistry(specs)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	policy, err := moderation.NewPolicy(`ref=`, []config.CounterShillRule{
		{Title: "Exchange", Match: `exchange\.com`, Link: "https://example.org/exchange"},
		{Title: "Other", Match: `other\.io`, Link: "https://example.org/other"},
	}, `tradingview\.com/x/`)
	if err != nil {
		t.Fatalf("NewPolicy returned error: %v", err)
	}

	hookLogger, hook := logtest.NewNullLogger()
	hookLogger.SetLevel(logrus.DebugLevel)
	logger := logrus.NewEntry(hookLogger)

	env := &testEnv{
		api:      newFakeAPI(),
		recorder: &fakeRecorder{},
		users:    &fakeUsers{},
		stats:    &fakeStats{},
		rooms:    rooms,
		hook:     hook,
	}

	handler, err := NewHandler(Deps{
		BotUsername: "natalia_bot",
		Rooms:       rooms,
		Templates:   templates.NewStore(testTemplates, templates.WithPicker(func(int) int { return 0 })),
		Policy:      policy,
		Guard:       admin.NewGuard([]int64{testAdmin, testOwner}, testOwner, logger),
		Users:       env.users,
		Recorder:    env.recorder,
		Stats:       env.stats,
		Names:       fakeNames{10: "Ana"},
		Media: config.Media{
			TeamspeakSticker:  "ts-sticker",
			LivestreamSticker: "live-sticker",
			PromoteSticker:    "promo-sticker",
			DonationPhoto:     "donation-photo",
			DonationCaption:   "Donate",
		},
		AdminDirectory: []config.AdminEntry{
			{Handle: "@one", AdminOf: "Main", About: "first"},
			{Handle: "@two", AdminOf: "Main", About: "second"},
		},
	}, logger)
	if err != nil {
		t.Fatalf("NewHandler returned error: %v", err)
	}
	handler.useAPI(env.api)
	handler.now = func() time.Time { return testNow }
	handler.pace = 0
	handler.shuffle = func(int, func(i, j int)) {}

	env.handler = handler
	return env
}

func groupMessage(from *models.User, text string) *models.Message {
	return &models.Message{
		ID:   500,
		From: from,
		Chat: models.Chat{ID: testGroupID, Type: models.ChatTypeSupergroup, Title: "Main"},
		Text: text,
	}
}

func privateMessage(from *models.User, text string) *models.Message {
	return &models.Message{
		ID:   501,
		From: from,
		Chat: models.Chat{ID: from.ID, Type: models.ChatTypePrivate, FirstName: from.FirstName},
		Text: text,
	}
}

var errBoom = errors.New("boom")
