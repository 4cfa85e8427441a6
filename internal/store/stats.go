package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"natalia_bot/internal/domain"
)

// hourBucketFormat groups timestamps per hour inside aggregation pipelines.
const (
	hourBucketFormat = "%Y-%m-%dT%H"
	hourBucketLayout = "2006-01-02T15"
)

type queryCollection interface {
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// Collections groups the interaction collections the stats provider reads.
type Collections struct {
	Stickers     queryCollection
	Gifs         queryCollection
	TextMessages queryCollection
	RoomJoins    queryCollection
	Requests     queryCollection
}

// Collections returns the manager's interaction collections.
func (m *Manager) Collections() Collections {
	return Collections{
		Stickers:     m.Stickers(),
		Gifs:         m.Gifs(),
		TextMessages: m.TextMessages(),
		RoomJoins:    m.RoomJoins(),
		Requests:     m.Requests(),
	}
}

// Count is a grouped total keyed by a file id.
type Count struct {
	ID    string `bson:"_id"`
	Total int    `bson:"total"`
}

// UserCount is a grouped total keyed by user id.
type UserCount struct {
	UserID int64 `bson:"_id"`
	Total  int   `bson:"total"`
}

// CommandDay is the number of audited requests of one command on one day.
type CommandDay struct {
	Day     time.Time
	Request string
	Total   int
}

// JoinDay is the number of joins of one chat on one day.
type JoinDay struct {
	Day    time.Time
	ChatID int64
	Total  int
}

// Bucket is an hourly interaction count.
type Bucket struct {
	Time  time.Time
	Count int
}

// StatsProvider runs the aggregation queries behind the analytics commands
// without leaking MongoDB internals to callers.
type StatsProvider struct {
	colls Collections
}

// NewStatsProvider constructs a StatsProvider over the given collections.
func NewStatsProvider(colls Collections) *StatsProvider {
	return &StatsProvider{colls: colls}
}

func (p *StatsProvider) collection(ctx context.Context, pick func(Collections) queryCollection) (queryCollection, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if p == nil {
		return nil, errors.New("stats provider is not initialized")
	}
	coll := pick(p.colls)
	if coll == nil {
		return nil, errors.New("stats provider is not initialized")
	}
	return coll, nil
}

func stickers(c Collections) queryCollection     { return c.Stickers }
func gifs(c Collections) queryCollection         { return c.Gifs }
func textMessages(c Collections) queryCollection { return c.TextMessages }
func roomJoins(c Collections) queryCollection    { return c.RoomJoins }
func requests(c Collections) queryCollection     { return c.Requests }

// TopStickers returns the most posted sticker ids since the given time.
func (p *StatsProvider) TopStickers(ctx context.Context, since time.Time, limit int) ([]Count, error) {
	coll, err := p.collection(ctx, stickers)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$gt": since}}}},
		groupTotal("$sticker_id"),
		sortByTotal(),
		{{Key: "$limit", Value: limit}},
	}

	var out []Count
	if err := aggregateAll(ctx, coll, pipeline, &out); err != nil {
		return nil, fmt.Errorf("aggregate top stickers: %w", err)
	}
	return out, nil
}

// TopGifs returns the most posted animation file ids of all time.
func (p *StatsProvider) TopGifs(ctx context.Context, limit int) ([]Count, error) {
	coll, err := p.collection(ctx, gifs)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		groupTotal("$file_id"),
		sortByTotal(),
		{{Key: "$limit", Value: limit}},
	}

	var out []Count
	if err := aggregateAll(ctx, coll, pipeline, &out); err != nil {
		return nil, fmt.Errorf("aggregate top gifs: %w", err)
	}
	return out, nil
}

// TopGifPosters returns the users who posted the most animations.
func (p *StatsProvider) TopGifPosters(ctx context.Context, limit int) ([]UserCount, error) {
	coll, err := p.collection(ctx, gifs)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		groupTotal("$user_id"),
		sortByTotal(),
		{{Key: "$limit", Value: limit}},
	}

	var out []UserCount
	if err := aggregateAll(ctx, coll, pipeline, &out); err != nil {
		return nil, fmt.Errorf("aggregate top gif posters: %w", err)
	}
	return out, nil
}

func dayOf(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func dayGroup(extra bson.E) bson.D {
	return bson.D{
		{Key: "year", Value: bson.M{"$year": "$timestamp"}},
		{Key: "month", Value: bson.M{"$month": "$timestamp"}},
		{Key: "day", Value: bson.M{"$dayOfMonth": "$timestamp"}},
		extra,
	}
}

// CommandStats counts audited private requests per day and command since
// the given time, largest totals first.
func (p *StatsProvider) CommandStats(ctx context.Context, since time.Time) ([]CommandDay, error) {
	coll, err := p.collection(ctx, requests)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$gt": since}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: dayGroup(bson.E{Key: "request", Value: "$request"})},
			{Key: "total", Value: bson.M{"$sum": 1}},
		}}},
		sortByTotal(),
	}

	var rows []struct {
		ID struct {
			Year    int    `bson:"year"`
			Month   int    `bson:"month"`
			Day     int    `bson:"day"`
			Request string `bson:"request"`
		} `bson:"_id"`
		Total int `bson:"total"`
	}
	if err := aggregateAll(ctx, coll, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("aggregate command stats: %w", err)
	}

	out := make([]CommandDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, CommandDay{Day: dayOf(row.ID.Year, row.ID.Month, row.ID.Day), Request: row.ID.Request, Total: row.Total})
	}
	return out, nil
}

// JoinStats counts room joins per day and chat since the given time, largest
// totals first.
func (p *StatsProvider) JoinStats(ctx context.Context, since time.Time) ([]JoinDay, error) {
	coll, err := p.collection(ctx, roomJoins)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$gt": since}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: dayGroup(bson.E{Key: "chat_id", Value: "$chat_id"})},
			{Key: "total", Value: bson.M{"$sum": 1}},
		}}},
		sortByTotal(),
	}

	var rows []struct {
		ID struct {
			Year   int   `bson:"year"`
			Month  int   `bson:"month"`
			Day    int   `bson:"day"`
			ChatID int64 `bson:"chat_id"`
		} `bson:"_id"`
		Total int `bson:"total"`
	}
	if err := aggregateAll(ctx, coll, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("aggregate join stats: %w", err)
	}

	out := make([]JoinDay, 0, len(rows))
	for _, row := range rows {
		out = append(out, JoinDay{Day: dayOf(row.ID.Year, row.ID.Month, row.ID.Day), ChatID: row.ID.ChatID, Total: row.Total})
	}
	return out, nil
}

// HourlyJoins buckets joins of a chat per hour since the given time.
func (p *StatsProvider) HourlyJoins(ctx context.Context, chatID int64, since time.Time) ([]Bucket, error) {
	return p.hourly(ctx, roomJoins, "joins", chatID, since)
}

// HourlyTexts buckets text messages of a chat per hour since the given time.
func (p *StatsProvider) HourlyTexts(ctx context.Context, chatID int64, since time.Time) ([]Bucket, error) {
	return p.hourly(ctx, textMessages, "texts", chatID, since)
}

// HourlyStickers buckets stickers of a chat per hour since the given time.
func (p *StatsProvider) HourlyStickers(ctx context.Context, chatID int64, since time.Time) ([]Bucket, error) {
	return p.hourly(ctx, stickers, "stickers", chatID, since)
}

func (p *StatsProvider) hourly(ctx context.Context, pick func(Collections) queryCollection, what string, chatID int64, since time.Time) ([]Bucket, error) {
	coll, err := p.collection(ctx, pick)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"chat_id": chatID, "timestamp": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$dateToString": bson.M{"format": hourBucketFormat, "date": "$timestamp"}}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	var rows []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := aggregateAll(ctx, coll, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("aggregate hourly %s: %w", what, err)
	}

	out := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(hourBucketLayout, row.ID)
		if err != nil {
			return nil, fmt.Errorf("parse hourly %s bucket %q: %w", what, row.ID, err)
		}
		out = append(out, Bucket{Time: ts, Count: row.Count})
	}
	return out, nil
}

// TextsSince returns the text messages stored after the given time.
func (p *StatsProvider) TextsSince(ctx context.Context, since time.Time) ([]domain.TextMessage, error) {
	coll, err := p.collection(ctx, textMessages)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx,
		bson.M{"timestamp": bson.M{"$gt": since}},
		options.Find().SetProjection(bson.M{"_id": 0, "username": 1, "message": 1, "timestamp": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find text messages: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.TextMessage
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode text messages: %w", err)
	}
	return out, nil
}

func groupTotal(field string) bson.D {
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: field},
		{Key: "total", Value: bson.M{"$sum": 1}},
	}}}
}

// sortByTotal orders by total descending with the group key as tie-breaker.
func sortByTotal() bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}}
}

func aggregateAll(ctx context.Context, coll queryCollection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}
