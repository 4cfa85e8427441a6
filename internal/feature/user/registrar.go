// Package user keeps the users collection current with the identity of
// everyone who interacts with the bot.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"natalia_bot/internal/logging"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Profile is the identity observed on an inbound message.
type Profile struct {
	UserID   int64
	Name     string
	Username string
}

// Registrar upserts user records keyed by user_id.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// Touch records that the user was seen at seenAt, refreshing name and
// username. first_seen is only written when the record is created. It
// reports whether a new record was inserted.
func (r *Registrar) Touch(ctx context.Context, profile Profile, seenAt time.Time) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if profile.UserID == 0 {
		return false, errors.New("user id is required")
	}

	seenAt = seenAt.UTC().Truncate(time.Millisecond)
	set := bson.M{
		"name":      profile.Name,
		"last_seen": seenAt,
	}
	if username := strings.TrimSpace(profile.Username); username != "" {
		set["username"] = username
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"user_id":    profile.UserID,
			"first_seen": seenAt,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": profile.UserID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": profile.UserID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": profile.UserID,
	}).Debug("updated user last seen")

	return false, nil
}
