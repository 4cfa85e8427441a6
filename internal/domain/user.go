package domain

import "time"

// User is the last known identity of a Telegram user who interacted with the
// bot. Name holds the resolved display name at the time of the last upsert.
type User struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Name      string    `bson:"name" json:"name"`
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	LastSeen  time.Time `bson:"last_seen" json:"last_seen"`
	FirstSeen time.Time `bson:"first_seen,omitempty" json:"first_seen,omitempty"`
}
