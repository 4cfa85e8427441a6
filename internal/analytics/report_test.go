package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"natalia_bot/internal/store"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestCommandReportGroupsByDayWithTotals(t *testing.T) {
	rows := []store.CommandDay{
		{Day: day(3), Request: "rules", Total: 4},
		{Day: day(1), Request: "start", Total: 2},
		{Day: day(3), Request: "start", Total: 1},
	}

	want := "*Natalia requests since the start of the month...*\n" +
		"--------------------\n" +
		"*1*\n" +
		"start - 2\n" +
		"--------------------\n" +
		"*3*\n" +
		"rules - 4\n" +
		"start - 1\n" +
		"--------------------\n" +
		"*Totals*\n" +
		"rules - 4\n" +
		"start - 3\n"

	assert.Equal(t, want, CommandReport(rows))
}

func TestCommandReportWithoutRowsStillHasTotals(t *testing.T) {
	want := "*Natalia requests since the start of the month...*\n" +
		"--------------------\n" +
		"*Totals*\n"

	assert.Equal(t, want, CommandReport(nil))
}

func TestJoinReportResolvesRoomNames(t *testing.T) {
	rows := []store.JoinDay{
		{Day: day(2), ChatID: -100, Total: 6},
		{Day: day(2), ChatID: -200, Total: 1},
		{Day: day(4), ChatID: -100, Total: 3},
	}
	names := map[int64]string{-100: "Main", -200: "Trading"}

	got := JoinReport(rows, func(id int64) string { return names[id] })

	want := "*Channel Joins since the start of the month...*\n" +
		"--------------------\n" +
		"*2*\n" +
		"Main - 6\n" +
		"Trading - 1\n" +
		"--------------------\n" +
		"*4*\n" +
		"Main - 3\n" +
		"--------------------\n" +
		"*Totals*\n" +
		"Main - 9\n" +
		"Trading - 1\n"
	assert.Equal(t, want, got)
}

func TestJoinReportFallsBackToChatID(t *testing.T) {
	got := JoinReport([]store.JoinDay{{Day: day(1), ChatID: -7, Total: 1}}, nil)
	assert.Contains(t, got, "-7 - 1\n")
}
