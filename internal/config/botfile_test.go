package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleBotFile = `
bot:
  username: natalia_bot
admins: [1, 2]
rooms:
  - id: "-1001"
    name: Main
    is_log: 1
    is_welcome: true
    is_countershill: 0
    days_restriction_on_join: 2
    prior_welcome_message_id: 42
    admin_room_id: -1002
    forward_channel: "-1003"
    forward_hashtag: "#news"
  - id: -1002
    name: Admins
messages:
  start: "Hi %s"
  welcome:
    - "Welcome %s"
    - "Hello %s"
  admins_json:
    "@alice":
      adminOf: Main
      about: Founder
    "@bob":
      adminOf: Admins
      about: Night shift
shill_detector: "ref="
counter_shill:
  - title: Exchange
    match: "exchange\\.com"
    link: "https://example.org"
media:
  donation_caption: "Thanks"
`

func TestParseBotFileDecodesRoomsAndMessages(t *testing.T) {
	file, err := ParseBotFile([]byte(sampleBotFile))
	if err != nil {
		t.Fatalf("expected bot file to parse, got error: %v", err)
	}

	if file.Bot.Username != "natalia_bot" {
		t.Fatalf("expected username natalia_bot, got %q", file.Bot.Username)
	}
	if len(file.Admins) != 2 || file.Admins[0] != 1 || file.Admins[1] != 2 {
		t.Fatalf("unexpected admins %v", file.Admins)
	}
	if len(file.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(file.Rooms))
	}

	main := file.Rooms[0]
	if main.ID != -1001 || main.Name != "Main" {
		t.Fatalf("unexpected first room %+v", main)
	}
	if !main.Flags["is_log"] || !main.Flags["is_welcome"] {
		t.Fatalf("expected is_log and is_welcome enabled, got %v", main.Flags)
	}
	if enabled, ok := main.Flags["is_countershill"]; !ok || enabled {
		t.Fatalf("expected is_countershill present and disabled, got %v", main.Flags)
	}
	if main.DaysRestrictionOnJoin != 2 || main.PriorWelcomeMessageID != 42 {
		t.Fatalf("unexpected numeric policy %+v", main)
	}
	if main.AdminRoomID != -1002 || main.ForwardChannel != -1003 || main.ForwardHashtag != "#news" {
		t.Fatalf("unexpected routing fields %+v", main)
	}

	if got := file.Messages.Templates["start"]; len(got) != 1 || got[0] != "Hi %s" {
		t.Fatalf("unexpected start template %v", got)
	}
	if got := file.Messages.Templates["welcome"]; len(got) != 2 {
		t.Fatalf("expected 2 welcome variants, got %v", got)
	}
	if _, ok := file.Messages.Templates[AdminDirectoryKey]; ok {
		t.Fatalf("admin directory must not be stored as a template")
	}
	if len(file.Messages.Admins) != 2 || file.Messages.Admins[0].Handle != "@alice" || file.Messages.Admins[1].About != "Night shift" {
		t.Fatalf("unexpected admin directory %+v", file.Messages.Admins)
	}

	if file.PriceFeed.URL != DefaultPriceFeedURL {
		t.Fatalf("expected default price feed url, got %q", file.PriceFeed.URL)
	}
	if file.Media.DonationCaption != "Thanks" {
		t.Fatalf("expected donation caption, got %q", file.Media.DonationCaption)
	}
}

func TestParseBotFileKeepsConfiguredPriceFeed(t *testing.T) {
	const feed = "https://candles.example.org/trade:1h:tETHUSD/hist"
	file, err := ParseBotFile([]byte(sampleBotFile + "price_feed:\n  url: \"" + feed + "\"\n"))
	if err != nil {
		t.Fatalf("ParseBotFile returned error: %v", err)
	}
	if file.PriceFeed.URL != feed {
		t.Fatalf("expected configured feed url, got %q", file.PriceFeed.URL)
	}
}

func TestParseBotFileRejectsInvalidContent(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		expectErr string
	}{
		{
			name:      "missing username",
			content:   "rooms:\n  - id: 1\n    name: A\n",
			expectErr: "bot.username",
		},
		{
			name:      "no rooms",
			content:   "bot:\n  username: b\n",
			expectErr: "at least one room",
		},
		{
			name:      "duplicate chat id",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\n  - id: \"1\"\n    name: B\n",
			expectErr: "share chat id",
		},
		{
			name:      "duplicate name",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\n  - id: 2\n    name: A\n",
			expectErr: "duplicate room name",
		},
		{
			name:      "unknown room key",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\n    colour: red\n",
			expectErr: "unknown room key",
		},
		{
			name:      "bad flag",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\n    is_log: maybe\n",
			expectErr: "is_log",
		},
		{
			name:      "bad chat id",
			content:   "bot:\n  username: b\nrooms:\n  - id: abc\n    name: A\n",
			expectErr: "invalid chat id",
		},
		{
			name:      "nested template",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\nmessages:\n  start:\n    a: b\n",
			expectErr: "must be a string or a list",
		},
		{
			name:      "empty counter shill pattern",
			content:   "bot:\n  username: b\nrooms:\n  - id: 1\n    name: A\ncounter_shill:\n  - title: x\n",
			expectErr: "counter_shill",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBotFile([]byte(tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
				t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
			}
		})
	}
}

func TestLoadBotFileReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleBotFile), 0o644); err != nil {
		t.Fatalf("failed to write bot file: %v", err)
	}

	file, err := LoadBotFile(path)
	if err != nil {
		t.Fatalf("expected bot file to load, got error: %v", err)
	}
	if len(file.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(file.Rooms))
	}

	if _, err := LoadBotFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
