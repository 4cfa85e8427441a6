package room

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natalia_bot/internal/config"
)

func testSpecs() []config.RoomSpec {
	return []config.RoomSpec{
		{
			ID:                    -1001,
			Name:                  "Main",
			Flags:                 map[string]bool{"is_log": true, "is_welcome": true, "is_top_gifs": false},
			DaysRestrictionOnJoin: 1,
			PriorWelcomeMessageID: 42,
			PriorJoinMessageID:    41,
			AdminRoomID:           -1002,
			ForwardChannel:        -1003,
			ForwardHashtag:        "#news",
		},
		{
			ID:    -1002,
			Name:  "Admins",
			Flags: map[string]bool{"is_top_gifs": true, "is_log": true},
		},
		{
			ID:    -1004,
			Name:  "Feed",
			Flags: map[string]bool{"is_top_gifs": true},
		},
	}
}

func TestByChatIDMatchesExactly(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	for _, spec := range testSpecs() {
		got, err := reg.ByChatID(int64(spec.ID))
		require.NoError(t, err)
		assert.Equal(t, int64(spec.ID), got.ChatID)
		assert.Equal(t, spec.Name, got.Name)
	}

	_, err = reg.ByChatID(-9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRoomAttributesCopiedFromRoomSpec(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	main, err := reg.ByChatID(-1001)
	require.NoError(t, err)

	assert.True(t, main.Has(FlagLog))
	assert.True(t, main.Has(FlagWelcome))
	assert.False(t, main.Has(FlagTopGifs))
	assert.False(t, main.Has(FlagCounterShill))
	assert.Equal(t, 1, main.DaysRestrictionOnJoin)
	assert.Equal(t, int64(-1002), main.AdminRoomID)
	assert.Equal(t, int64(-1003), main.ForwardChannel)
	assert.Equal(t, "#news", main.ForwardHashtag)
}

func TestByFlagReturnsFirstInConfiguredOrder(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	got, err := reg.ByFlag(FlagTopGifs)
	require.NoError(t, err)
	assert.Equal(t, "Admins", got.Name)

	_, err = reg.ByFlag(FlagWordcloud)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllByFlag(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	logged := reg.AllByFlag(FlagLog)
	require.Len(t, logged, 2)
	assert.Equal(t, "Main", logged[0].Name)
	assert.Equal(t, "Admins", logged[1].Name)

	assert.Empty(t, reg.AllByFlag(FlagPromoteTS))
}

func TestNewRegistryRejectsDuplicateAndMissingIDs(t *testing.T) {
	specs := testSpecs()
	specs[2].ID = specs[0].ID

	_, err := NewRegistry(specs)
	assert.Error(t, err)

	_, err = NewRegistry([]config.RoomSpec{{Name: "NoID"}})
	assert.Error(t, err)
}

func TestNameOfFallsBackToID(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	assert.Equal(t, "Main", reg.NameOf(-1001))
	assert.Equal(t, "-77", reg.NameOf(-77))
}

func TestSlotMutationsAreVisible(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	initial := reg.Slots(-1001)
	assert.Equal(t, Slots{PriorWelcomeID: 42, PriorJoinID: 41}, initial)

	reg.RememberWelcome(-1001, 100, 99)
	assert.Equal(t, 100, reg.Slots(-1001).PriorWelcomeID)
	assert.Equal(t, 99, reg.Slots(-1001).PriorJoinID)

	assert.Equal(t, 0, reg.SwapUncompressedReminder(-1001, 7))
	assert.Equal(t, 7, reg.SwapUncompressedReminder(-1001, 8))
	assert.Equal(t, 8, reg.Slots(-1001).UncompressedReminderID)

	assert.Equal(t, Slots{}, reg.Slots(-1004))
}

func TestSlotsSafeForConcurrentWriters(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reg.RememberWelcome(-1001, id, id)
			reg.SwapUncompressedReminder(-1001, id)
		}(i)
	}
	wg.Wait()

	slots := reg.Slots(-1001)
	assert.Equal(t, slots.PriorWelcomeID, slots.PriorJoinID)
	assert.NotZero(t, slots.UncompressedReminderID)
}

func TestUnassignedFlagsListsDestinationsWithoutRoom(t *testing.T) {
	reg, err := NewRegistry(testSpecs())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"is_top_stickers",
		"is_wordcloud",
		"is_todaysusers",
		"is_promotets",
		"is_shill",
		"is_price_overlay",
	}, reg.UnassignedFlags())
}

func TestUnassignedFlagsEmptyWhenEveryDestinationIsSet(t *testing.T) {
	flags := map[string]bool{}
	for _, f := range destinationFlags {
		flags[string(f)] = true
	}
	reg, err := NewRegistry([]config.RoomSpec{{ID: -1, Name: "All", Flags: flags}})
	require.NoError(t, err)

	assert.Empty(t, reg.UnassignedFlags())
}
