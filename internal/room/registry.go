// Package room holds the configured chat destinations and the per-room
// message slots the bot rewrites as it posts and deletes messages.
package room

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"natalia_bot/internal/config"
)

// ErrNotFound is returned when no room matches a chat id or flag.
var ErrNotFound = errors.New("room not found")

// Flag names a boolean room attribute as written in the bot file.
type Flag string

const (
	FlagLog                  Flag = "is_log"
	FlagWelcome              Flag = "is_welcome"
	FlagCounterShill         Flag = "is_countershill"
	FlagTopStickers          Flag = "is_top_stickers"
	FlagTopGifs              Flag = "is_top_gifs"
	FlagWordcloud            Flag = "is_wordcloud"
	FlagTodaysUsers          Flag = "is_todaysusers"
	FlagPromoteTS            Flag = "is_promotets"
	FlagPromoteTSPin         Flag = "is_promotets_pin"
	FlagShill                Flag = "is_shill"
	FlagPriceOverlay         Flag = "is_price_overlay"
	FlagNoUncompressedImages Flag = "is_no_uncompressed_images"
)

// destinationFlags are the flags commands resolve a target room by.
var destinationFlags = []Flag{
	FlagTopStickers,
	FlagTopGifs,
	FlagWordcloud,
	FlagTodaysUsers,
	FlagPromoteTS,
	FlagShill,
	FlagPriceOverlay,
}

// Room is the immutable configuration of one chat destination.
type Room struct {
	ChatID                int64
	Name                  string
	DaysRestrictionOnJoin int
	AdminRoomID           int64
	ForwardChannel        int64
	ForwardHashtag        string
	SpecialWelcome        string

	flags map[Flag]bool
}

// Has reports whether the flag is enabled for the room.
func (r Room) Has(flag Flag) bool {
	return r.flags[flag]
}

// Slots are the ids of bot-managed messages the room remembers so they can
// be deleted or replaced later. Zero means no message.
type Slots struct {
	PriorWelcomeID         int
	PriorJoinID            int
	UncompressedReminderID int
}

// Registry resolves rooms by chat id or flag. Definitions never change after
// construction; slots are guarded by a mutex and the last write wins.
type Registry struct {
	rooms  []Room
	byChat map[int64]int

	mu    sync.Mutex
	slots map[int64]Slots
}

// NewRegistry builds a registry from the bot file rooms, preserving their
// configured order.
func NewRegistry(specs []config.RoomSpec) (*Registry, error) {
	reg := &Registry{
		rooms:  make([]Room, 0, len(specs)),
		byChat: make(map[int64]int, len(specs)),
		slots:  make(map[int64]Slots, len(specs)),
	}

	for _, spec := range specs {
		chatID := int64(spec.ID)
		if chatID == 0 {
			return nil, fmt.Errorf("room %q: chat id is required", spec.Name)
		}
		if _, dup := reg.byChat[chatID]; dup {
			return nil, fmt.Errorf("room %q: chat id %d is already registered", spec.Name, chatID)
		}

		flags := make(map[Flag]bool, len(spec.Flags))
		for name, enabled := range spec.Flags {
			flags[Flag(name)] = enabled
		}

		reg.byChat[chatID] = len(reg.rooms)
		reg.rooms = append(reg.rooms, Room{
			ChatID:                chatID,
			Name:                  spec.Name,
			DaysRestrictionOnJoin: spec.DaysRestrictionOnJoin,
			AdminRoomID:           int64(spec.AdminRoomID),
			ForwardChannel:        int64(spec.ForwardChannel),
			ForwardHashtag:        spec.ForwardHashtag,
			SpecialWelcome:        spec.SpecialWelcomeMessage,
			flags:                 flags,
		})
		reg.slots[chatID] = Slots{
			PriorWelcomeID:         spec.PriorWelcomeMessageID,
			PriorJoinID:            spec.PriorJoinMessageID,
			UncompressedReminderID: spec.LastUncompressedImageID,
		}
	}

	return reg, nil
}

// Len returns the number of configured rooms.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rooms)
}

// UnassignedFlags lists the destination flags no room enables, in a fixed
// order. Commands posting to those destinations can only answer that no room
// is configured.
func (r *Registry) UnassignedFlags() []string {
	var missing []string
	for _, flag := range destinationFlags {
		if r == nil || len(r.AllByFlag(flag)) == 0 {
			missing = append(missing, string(flag))
		}
	}
	return missing
}

// ByChatID returns the room whose chat id equals id.
func (r *Registry) ByChatID(id int64) (Room, error) {
	idx, ok := r.byChat[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: chat id %d", ErrNotFound, id)
	}
	return r.rooms[idx], nil
}

// ByFlag returns the first room, in configured order, with the flag enabled.
func (r *Registry) ByFlag(flag Flag) (Room, error) {
	for _, room := range r.rooms {
		if room.Has(flag) {
			return room, nil
		}
	}
	return Room{}, fmt.Errorf("%w: flag %s", ErrNotFound, flag)
}

// AllByFlag returns every room with the flag enabled, in configured order.
func (r *Registry) AllByFlag(flag Flag) []Room {
	var matches []Room
	for _, room := range r.rooms {
		if room.Has(flag) {
			matches = append(matches, room)
		}
	}
	return matches
}

// NameOf returns the configured room name for a chat id, or the id itself
// when the chat is not a configured room.
func (r *Registry) NameOf(id int64) string {
	if room, err := r.ByChatID(id); err == nil {
		return room.Name
	}
	return strconv.FormatInt(id, 10)
}

// Slots returns the current message slots of a room.
func (r *Registry) Slots(chatID int64) Slots {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.slots[chatID]
}

// RememberWelcome records the latest welcome message and the join notice it
// replied to.
func (r *Registry) RememberWelcome(chatID int64, welcomeID, joinID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slots[chatID]
	s.PriorWelcomeID = welcomeID
	s.PriorJoinID = joinID
	r.slots[chatID] = s
}

// SwapUncompressedReminder stores the id of the newest uncompressed-image
// reminder and returns the one it replaces.
func (r *Registry) SwapUncompressedReminder(chatID int64, id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slots[chatID]
	previous := s.UncompressedReminderID
	s.UncompressedReminderID = id
	r.slots[chatID] = s

	return previous
}
