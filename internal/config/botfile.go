package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdminDirectoryKey is the messages key holding the admin directory instead of
// a reply template.
const AdminDirectoryKey = "admins_json"

// DefaultPriceFeedURL serves hourly BTCUSD candles.
const DefaultPriceFeedURL = "https://api.bitfinex.com/v2/candles/trade:1h:tBTCUSD/hist?limit=200"

// BotFile is the declarative description of the bot: identity, admins, rooms,
// reply templates and moderation patterns.
type BotFile struct {
	Bot          BotIdentity        `yaml:"bot"`
	Admins       []int64            `yaml:"admins"`
	Rooms        []RoomSpec         `yaml:"rooms"`
	Messages     Messages           `yaml:"messages"`
	Stopwords    []string           `yaml:"wordcloud_stopwords"`
	ForwardURLs  string             `yaml:"forward_urls"`
	ShillPattern string             `yaml:"shill_detector"`
	CounterShill []CounterShillRule `yaml:"counter_shill"`
	Media        Media              `yaml:"media"`
	PriceFeed    PriceFeed          `yaml:"price_feed"`
}

// BotIdentity names the bot account.
type BotIdentity struct {
	Username string `yaml:"username"`
}

// CounterShillRule pairs a referral pattern with the rebuttal link posted
// when it matches.
type CounterShillRule struct {
	Title string `yaml:"title"`
	Match string `yaml:"match"`
	Link  string `yaml:"link"`
}

// Media holds Telegram file ids reused by commands and broadcasts.
type Media struct {
	TeamspeakSticker  string `yaml:"teamspeak_sticker"`
	LivestreamSticker string `yaml:"livestream_sticker"`
	PromoteSticker    string `yaml:"promote_sticker"`
	DonationPhoto     string `yaml:"donation_photo"`
	DonationCaption   string `yaml:"donation_caption"`
}

// PriceFeed configures the candle source for the price overlay chart.
// The overlay buckets activity by hour, so the feed must serve hourly candles.
type PriceFeed struct {
	URL string `yaml:"url"`
}

// ChatID is a Telegram chat identifier accepted as a bare or quoted integer.
type ChatID int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ChatID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: chat id must be a scalar", node.Line)
	}

	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*c = 0
		return nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid chat id %q: %w", node.Line, raw, err)
	}

	*c = ChatID(id)
	return nil
}

// RoomSpec is one configured room as written in the bot file.
type RoomSpec struct {
	ID                      ChatID
	Name                    string
	Flags                   map[string]bool
	DaysRestrictionOnJoin   int
	PriorWelcomeMessageID   int
	PriorJoinMessageID      int
	LastUncompressedImageID int
	AdminRoomID             ChatID
	ForwardChannel          ChatID
	ForwardHashtag          string
	SpecialWelcomeMessage   string
}

// UnmarshalYAML implements yaml.Unmarshaler. Keys prefixed with "is_" become
// boolean flags and accept true/false or 1/0; unknown keys are rejected.
func (r *RoomSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: room must be a mapping", node.Line)
	}

	spec := RoomSpec{Flags: make(map[string]bool)}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := strings.TrimSpace(keyNode.Value)

		if strings.HasPrefix(key, "is_") {
			enabled, err := strconv.ParseBool(strings.TrimSpace(valueNode.Value))
			if err != nil {
				return fmt.Errorf("line %d: flag %s: %w", valueNode.Line, key, err)
			}
			spec.Flags[key] = enabled
			continue
		}

		var err error
		switch key {
		case "id":
			err = valueNode.Decode(&spec.ID)
		case "name":
			err = valueNode.Decode(&spec.Name)
		case "days_restriction_on_join":
			err = valueNode.Decode(&spec.DaysRestrictionOnJoin)
		case "prior_welcome_message_id":
			err = valueNode.Decode(&spec.PriorWelcomeMessageID)
		case "prior_join_message_id":
			err = valueNode.Decode(&spec.PriorJoinMessageID)
		case "lastuncompressed_image_message_id":
			err = valueNode.Decode(&spec.LastUncompressedImageID)
		case "admin_room_id":
			err = valueNode.Decode(&spec.AdminRoomID)
		case "forward_channel":
			err = valueNode.Decode(&spec.ForwardChannel)
		case "forward_hashtag":
			err = valueNode.Decode(&spec.ForwardHashtag)
		case "special_welcome_message":
			err = valueNode.Decode(&spec.SpecialWelcomeMessage)
		default:
			return fmt.Errorf("line %d: unknown room key %q", keyNode.Line, key)
		}
		if err != nil {
			return fmt.Errorf("room key %s: %w", key, err)
		}
	}

	*r = spec
	return nil
}

// AdminEntry is one line of the /admins directory.
type AdminEntry struct {
	Handle  string
	AdminOf string `yaml:"adminOf"`
	About   string `yaml:"about"`
}

// Messages holds reply templates keyed by name. A template is either a single
// string or a list of variants picked at random.
type Messages struct {
	Templates map[string][]string
	Admins    []AdminEntry
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Messages) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: messages must be a mapping", node.Line)
	}

	out := Messages{Templates: make(map[string][]string)}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := strings.TrimSpace(keyNode.Value)

		if key == AdminDirectoryKey {
			admins, err := decodeAdminDirectory(valueNode)
			if err != nil {
				return err
			}
			out.Admins = admins
			continue
		}

		switch valueNode.Kind {
		case yaml.ScalarNode:
			out.Templates[key] = []string{valueNode.Value}
		case yaml.SequenceNode:
			var variants []string
			if err := valueNode.Decode(&variants); err != nil {
				return fmt.Errorf("message %s: %w", key, err)
			}
			if len(variants) == 0 {
				return fmt.Errorf("message %s: variant list is empty", key)
			}
			out.Templates[key] = variants
		default:
			return fmt.Errorf("line %d: message %s must be a string or a list of strings", valueNode.Line, key)
		}
	}

	*m = out
	return nil
}

func decodeAdminDirectory(node *yaml.Node) ([]AdminEntry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s must be a mapping", node.Line, AdminDirectoryKey)
	}

	entries := make([]AdminEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry AdminEntry
		if err := node.Content[i+1].Decode(&entry); err != nil {
			return nil, fmt.Errorf("%s %s: %w", AdminDirectoryKey, node.Content[i].Value, err)
		}
		entry.Handle = node.Content[i].Value
		entries = append(entries, entry)
	}

	return entries, nil
}

// LoadBotFile reads and validates the declarative bot file at path.
func LoadBotFile(path string) (BotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BotFile{}, fmt.Errorf("read bot config: %w", err)
	}

	return ParseBotFile(data)
}

// ParseBotFile decodes and validates bot file content.
func ParseBotFile(data []byte) (BotFile, error) {
	var file BotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return BotFile{}, fmt.Errorf("decode bot config: %w", err)
	}

	if err := file.validate(); err != nil {
		return BotFile{}, err
	}

	if strings.TrimSpace(file.PriceFeed.URL) == "" {
		file.PriceFeed.URL = DefaultPriceFeedURL
	}

	return file, nil
}

func (f BotFile) validate() error {
	if strings.TrimSpace(f.Bot.Username) == "" {
		return errors.New("bot config: bot.username is required")
	}
	if len(f.Rooms) == 0 {
		return errors.New("bot config: at least one room is required")
	}

	ids := make(map[ChatID]string, len(f.Rooms))
	names := make(map[string]struct{}, len(f.Rooms))
	for i, r := range f.Rooms {
		if r.ID == 0 {
			return fmt.Errorf("bot config: room %d has no id", i)
		}
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("bot config: room %d has no name", i)
		}
		if other, dup := ids[r.ID]; dup {
			return fmt.Errorf("bot config: rooms %q and %q share chat id %d", other, r.Name, r.ID)
		}
		if _, dup := names[r.Name]; dup {
			return fmt.Errorf("bot config: duplicate room name %q", r.Name)
		}
		if r.DaysRestrictionOnJoin < 0 {
			return fmt.Errorf("bot config: room %q has negative days_restriction_on_join", r.Name)
		}
		ids[r.ID] = r.Name
		names[r.Name] = struct{}{}
	}

	for i, rule := range f.CounterShill {
		if strings.TrimSpace(rule.Match) == "" {
			return fmt.Errorf("bot config: counter_shill rule %d has no match pattern", i)
		}
	}

	return nil
}
