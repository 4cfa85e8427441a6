package telegram

import (
	"context"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
)

func joinMessage(members ...models.User) *models.Message {
	msg := groupMessage(&models.User{ID: 1, FirstName: "System"}, "")
	msg.NewChatMembers = members
	return msg
}

func TestGroupTextWithoutUsernameIsNotStored(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), groupMessage(&models.User{ID: 3, FirstName: "Ann"}, "hello there"))

	if env.recorder.writes() != 0 || len(env.users.profiles) != 0 {
		t.Fatalf("expected zero writes, got %d records and %d touches", env.recorder.writes(), len(env.users.profiles))
	}
	if calls := env.api.methods(); len(calls) != 0 {
		t.Fatalf("expected no api calls, got %v", calls)
	}
}

func TestGroupTextWithUsernameIsStoredOnce(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), groupMessage(userAnn, "hello there"))

	if len(env.recorder.texts) != 1 {
		t.Fatalf("expected one stored text, got %d", len(env.recorder.texts))
	}
	got := env.recorder.texts[0]
	if got.UserID != userAnn.ID || got.ChatID != testGroupID || got.MessageID != 500 || got.Username != "ann" || got.Message != "hello there" {
		t.Fatalf("unexpected text record %+v", got)
	}
	if len(env.users.profiles) != 1 || env.users.profiles[0].Name != "Ann" {
		t.Fatalf("expected one user touch, got %+v", env.users.profiles)
	}
}

func TestMessagesFromUnknownRoomsAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	msg := groupMessage(userAnn, "hello")
	msg.Chat.ID = -999

	env.handler.dispatch(context.Background(), msg)

	if env.recorder.writes() != 0 {
		t.Fatalf("expected no writes for an unknown room")
	}
	var warned bool
	for _, entry := range env.hook.AllEntries() {
		if entry.Data["event"] == "unknown_room" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected unknown_room log entry")
	}
}

func TestJoinReplacesPriorWelcomeAndRestricts(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), joinMessage(models.User{ID: 20, FirstName: "Bo"}))

	want := []string{"DeleteMessage", "DeleteMessage", "GetUserProfilePhotos", "SendMessage", "RestrictChatMember"}
	if got := env.api.methods(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected calls %v, got %v", want, got)
	}

	deletes := env.api.callsOf("DeleteMessage")
	if deletes[0].messageID != 42 || deletes[1].messageID != 41 {
		t.Fatalf("expected prior welcome 42 and join 41 deleted, got %+v", deletes)
	}

	sent := env.api.callsOf("SendMessage")[0]
	if sent.text != "Welcome Bo!" || sent.messageID != 500 {
		t.Fatalf("unexpected welcome %+v", sent)
	}

	slots := env.rooms.Slots(testGroupID)
	if slots.PriorWelcomeID != 101 || slots.PriorJoinID != 500 {
		t.Fatalf("expected slots to hold the new welcome and join, got %+v", slots)
	}

	if len(env.recorder.joins) != 1 || env.recorder.joins[0] != [2]int64{20, testGroupID} {
		t.Fatalf("unexpected recorded joins %v", env.recorder.joins)
	}

	restrict := env.api.callsOf("RestrictChatMember")[0]
	if restrict.userID != 20 || restrict.until != int(testNow.AddDate(0, 0, 1).Unix()) {
		t.Fatalf("unexpected restriction %+v", restrict)
	}
}

func TestJoinWithSeveralMembersKeepsTheJoinNotice(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), joinMessage(
		models.User{ID: 20, FirstName: "Bo"},
		models.User{ID: 21, FirstName: "Cy"},
	))

	deletes := env.api.callsOf("DeleteMessage")
	if len(deletes) != 3 {
		t.Fatalf("expected three deletes, got %+v", deletes)
	}
	if deletes[0].messageID != 42 || deletes[1].messageID != 41 || deletes[2].messageID != 101 {
		t.Fatalf("expected prior welcome, prior join and Bo's welcome deleted, got %+v", deletes)
	}
	for _, d := range deletes {
		if d.messageID == 500 {
			t.Fatalf("join notice 500 must not be deleted while welcoming its members")
		}
	}

	sent := env.api.callsOf("SendMessage")
	if len(sent) != 2 || sent[0].text != "Welcome Bo!" || sent[1].text != "Welcome Cy!" {
		t.Fatalf("unexpected welcomes %+v", sent)
	}
	for _, s := range sent {
		if s.messageID != 500 {
			t.Fatalf("expected every welcome to reply to the join notice, got %+v", s)
		}
	}

	slots := env.rooms.Slots(testGroupID)
	if slots.PriorWelcomeID != 102 || slots.PriorJoinID != 500 {
		t.Fatalf("expected the last welcome to be remembered, got %+v", slots)
	}
	if len(env.api.callsOf("RestrictChatMember")) != 2 {
		t.Fatalf("expected both members restricted")
	}
}

func TestJoinStillWelcomesWhenDeletesFail(t *testing.T) {
	env := newTestEnv(t)
	env.api.failures["DeleteMessage"] = errBoom
	env.api.photos = 0

	env.handler.dispatch(context.Background(), joinMessage(models.User{ID: 20, FirstName: "Bo"}))

	sent := env.api.callsOf("SendMessage")
	if len(sent) != 1 || sent[0].text != "Welcome Bo!"+profilePicReminder {
		t.Fatalf("unexpected welcome %+v", sent)
	}
	if slots := env.rooms.Slots(testGroupID); slots.PriorWelcomeID != 101 {
		t.Fatalf("expected new welcome id to be stored, got %+v", slots)
	}
}

func TestJoinSkipsTheBotItself(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), joinMessage(models.User{ID: 99, IsBot: true, Username: "natalia_bot"}))

	if calls := env.api.methods(); len(calls) != 0 {
		t.Fatalf("expected no calls when the bot joins, got %v", calls)
	}
}

func TestPhotoWithForwardHashtagIsForwarded(t *testing.T) {
	env := newTestEnv(t)
	msg := groupMessage(userAnn, "")
	msg.Photo = []models.PhotoSize{{FileID: "p"}}
	msg.Caption = "look #news"

	env.handler.dispatch(context.Background(), msg)

	forwards := env.api.callsOf("ForwardMessage")
	if len(forwards) != 1 || forwards[0].chatID != testFeedID || forwards[0].messageID != 500 {
		t.Fatalf("unexpected forwards %+v", forwards)
	}
}

func TestStickerIsRecordedInLogRooms(t *testing.T) {
	env := newTestEnv(t)
	msg := groupMessage(userAnn, "")
	msg.Sticker = &models.Sticker{FileID: "st-1"}

	env.handler.dispatch(context.Background(), msg)

	if len(env.recorder.stickers) != 1 || env.recorder.stickers[0].StickerID != "st-1" {
		t.Fatalf("unexpected stickers %+v", env.recorder.stickers)
	}
	if len(env.users.profiles) != 1 {
		t.Fatalf("expected sender to be touched")
	}
}

func TestMp4DocumentIsRecordedAsGif(t *testing.T) {
	env := newTestEnv(t)
	msg := groupMessage(userAnn, "")
	msg.Document = &models.Document{FileID: "gif-9", MimeType: "video/mp4"}

	env.handler.dispatch(context.Background(), msg)

	if len(env.recorder.gifs) != 1 || env.recorder.gifs[0].FileID != "gif-9" {
		t.Fatalf("unexpected gifs %+v", env.recorder.gifs)
	}
}

func TestUncompressedImageKeepsSingleReminder(t *testing.T) {
	env := newTestEnv(t)
	image := func(id int) *models.Message {
		msg := groupMessage(userAnn, "")
		msg.ID = id
		msg.Document = &models.Document{FileID: "img", MimeType: "image/png"}
		return msg
	}

	env.handler.dispatch(context.Background(), image(600))
	env.handler.dispatch(context.Background(), image(601))

	deletes := env.api.callsOf("DeleteMessage")
	if len(deletes) != 3 {
		t.Fatalf("expected 3 deletes, got %+v", deletes)
	}
	if deletes[0].messageID != 600 || deletes[1].messageID != 101 || deletes[2].messageID != 601 {
		t.Fatalf("unexpected delete order %+v", deletes)
	}
	sent := env.api.callsOf("SendMessage")
	if len(sent) != 2 || sent[0].text != "Ann, compress your images" {
		t.Fatalf("unexpected reminders %+v", sent)
	}
	if got := env.rooms.Slots(testGroupID).UncompressedReminderID; got != 102 {
		t.Fatalf("expected reminder slot 102, got %d", got)
	}
}

func TestPrivateTextGetsStartMessage(t *testing.T) {
	env := newTestEnv(t)

	env.handler.dispatch(context.Background(), privateMessage(userAnn, "hello"))

	sent := env.api.callsOf("SendMessage")
	if len(sent) != 1 || sent[0].text != "Hi Ann" {
		t.Fatalf("unexpected reply %+v", sent)
	}
	if env.recorder.writes() != 0 {
		t.Fatalf("private text must not be stored")
	}
}
