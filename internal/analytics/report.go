// Package analytics turns stored interaction history into text reports,
// word frequencies, technical indicators and PNG charts.
package analytics

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"natalia_bot/internal/store"
)

// ErrNoData is returned when there is nothing to report or draw.
var ErrNoData = errors.New("no data")

const reportRule = "--------------------\n"

// CommandReport renders per-day command counts followed by totals. Days are
// listed in ascending order; commands keep the order of the input rows.
func CommandReport(rows []store.CommandDay) string {
	type dayLines struct {
		keys   []string
		counts map[string]int
	}

	days := make(map[int]*dayLines)
	var totalKeys []string
	totals := make(map[string]int)

	for _, row := range rows {
		day := row.Day.Day()
		dl, ok := days[day]
		if !ok {
			dl = &dayLines{counts: make(map[string]int)}
			days[day] = dl
		}
		if _, seen := dl.counts[row.Request]; !seen {
			dl.keys = append(dl.keys, row.Request)
		}
		dl.counts[row.Request] += row.Total

		if _, seen := totals[row.Request]; !seen {
			totalKeys = append(totalKeys, row.Request)
		}
		totals[row.Request] += row.Total
	}

	var b strings.Builder
	b.WriteString("*Natalia requests since the start of the month...*\n")
	for _, day := range sortedDays(days) {
		b.WriteString(reportRule)
		b.WriteString("*" + strconv.Itoa(day) + "*\n")
		for _, key := range days[day].keys {
			b.WriteString(key + " - " + strconv.Itoa(days[day].counts[key]) + "\n")
		}
	}
	b.WriteString(reportRule)
	b.WriteString("*Totals*\n")
	for _, key := range totalKeys {
		b.WriteString(key + " - " + strconv.Itoa(totals[key]) + "\n")
	}

	return b.String()
}

// JoinReport renders per-day join counts per room followed by totals. nameOf
// resolves a chat id to the label printed for it.
func JoinReport(rows []store.JoinDay, nameOf func(int64) string) string {
	type dayLines struct {
		chats  []int64
		counts map[int64]int
	}

	if nameOf == nil {
		nameOf = func(id int64) string { return strconv.FormatInt(id, 10) }
	}

	days := make(map[int]*dayLines)
	var totalChats []int64
	totals := make(map[int64]int)

	for _, row := range rows {
		day := row.Day.Day()
		dl, ok := days[day]
		if !ok {
			dl = &dayLines{counts: make(map[int64]int)}
			days[day] = dl
		}
		if _, seen := dl.counts[row.ChatID]; !seen {
			dl.chats = append(dl.chats, row.ChatID)
		}
		dl.counts[row.ChatID] += row.Total

		if _, seen := totals[row.ChatID]; !seen {
			totalChats = append(totalChats, row.ChatID)
		}
		totals[row.ChatID] += row.Total
	}

	var b strings.Builder
	b.WriteString("*Channel Joins since the start of the month...*\n")
	for _, day := range sortedDays(days) {
		b.WriteString(reportRule)
		b.WriteString("*" + strconv.Itoa(day) + "*\n")
		for _, chat := range days[day].chats {
			b.WriteString(nameOf(chat) + " - " + strconv.Itoa(days[day].counts[chat]) + "\n")
		}
	}
	b.WriteString(reportRule)
	b.WriteString("*Totals*\n")
	for _, chat := range totalChats {
		b.WriteString(nameOf(chat) + " - " + strconv.Itoa(totals[chat]) + "\n")
	}

	return b.String()
}

func sortedDays[V any](days map[int]V) []int {
	keys := make([]int, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Ints(keys)
	return keys
}
