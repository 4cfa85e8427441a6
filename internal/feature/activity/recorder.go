// Package activity appends interaction, audit and lifecycle records.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"natalia_bot/internal/domain"
	"natalia_bot/internal/logging"
)

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Sinks are the append-only collections the recorder writes to.
type Sinks struct {
	TextMessages insertCollection
	Stickers     insertCollection
	Gifs         insertCollection
	RoomJoins    insertCollection
	Requests     insertCollection
	SoftLog      insertCollection
}

// Recorder writes one record per call. Writes are fire-and-forget inserts.
type Recorder struct {
	sinks  Sinks
	runID  string
	now    func() time.Time
	logger *logrus.Entry
}

// NewRecorder constructs a Recorder. runID is stamped on softlog entries.
func NewRecorder(sinks Sinks, runID string, logger *logrus.Entry) *Recorder {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Recorder{
		sinks:  sinks,
		runID:  runID,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		logger: logger,
	}
}

func (r *Recorder) insert(ctx context.Context, pick func(Sinks) insertCollection, kind string, doc interface{}) error {
	if r == nil {
		return errors.New("activity recorder is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	coll := pick(r.sinks)
	if coll == nil {
		return fmt.Errorf("activity recorder has no %s collection", kind)
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}

	r.logger.WithFields(logging.Fields{
		"event": "activity_recorded",
		"kind":  kind,
	}).Debug("recorded activity")

	return nil
}

func (r *Recorder) stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return r.now()
	}
	return ts.UTC().Truncate(time.Millisecond)
}

// Text stores a group text message.
func (r *Recorder) Text(ctx context.Context, msg domain.TextMessage) error {
	if r != nil {
		msg.Timestamp = r.stamp(msg.Timestamp)
	}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.TextMessages }, "text message", msg)
}

// Sticker stores a sticker interaction.
func (r *Recorder) Sticker(ctx context.Context, msg domain.StickerMessage) error {
	if r != nil {
		msg.Timestamp = r.stamp(msg.Timestamp)
	}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.Stickers }, "sticker", msg)
}

// Gif stores an animation interaction.
func (r *Recorder) Gif(ctx context.Context, msg domain.GifMessage) error {
	if r != nil {
		msg.Timestamp = r.stamp(msg.Timestamp)
	}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.Gifs }, "gif", msg)
}

// Join stores a room join.
func (r *Recorder) Join(ctx context.Context, userID, chatID int64) error {
	if r == nil {
		return errors.New("activity recorder is not initialized")
	}
	doc := domain.RoomJoin{UserID: userID, ChatID: chatID, Timestamp: r.now()}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.RoomJoins }, "room join", doc)
}

// Request audits a command answered privately.
func (r *Recorder) Request(ctx context.Context, userID int64, command string) error {
	if r == nil {
		return errors.New("activity recorder is not initialized")
	}
	doc := domain.Request{UserID: userID, Request: command, Timestamp: r.now()}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.Requests }, "request", doc)
}

// SoftLog stores a lifecycle notice tagged with the run id.
func (r *Recorder) SoftLog(ctx context.Context, comment string) error {
	if r == nil {
		return errors.New("activity recorder is not initialized")
	}
	doc := domain.SoftLog{Comment: comment, RunID: r.runID, Timestamp: r.now()}
	return r.insert(ctx, func(s Sinks) insertCollection { return s.SoftLog }, "softlog", doc)
}
