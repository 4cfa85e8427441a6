// Package admin authorizes privileged commands against the configured
// allow-list.
package admin

import (
	"github.com/sirupsen/logrus"

	"natalia_bot/internal/logging"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Denied is the zero value so an unchecked decision fails closed.
	Denied Decision = iota
	Authorized
)

func (d Decision) String() string {
	if d == Authorized {
		return "authorized"
	}
	return "denied"
}

// Guard holds the immutable admin set and the bot owner.
type Guard struct {
	admins map[int64]struct{}
	owner  int64
	logger *logrus.Entry
}

// NewGuard builds a guard from the configured admin ids. The owner is not
// implicitly an admin.
func NewGuard(admins []int64, owner int64, logger *logrus.Entry) *Guard {
	if logger == nil {
		logger = logging.Logger()
	}

	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		if id != 0 {
			set[id] = struct{}{}
		}
	}

	return &Guard{admins: set, owner: owner, logger: logger}
}

// IsAdmin reports whether userID is in the admin set.
func (g *Guard) IsAdmin(userID int64) bool {
	if g == nil {
		return false
	}
	_, ok := g.admins[userID]
	return ok
}

// IsOwner reports whether userID is the configured bot owner.
func (g *Guard) IsOwner(userID int64) bool {
	return g != nil && g.owner != 0 && g.owner == userID
}

// Owner returns the configured owner id.
func (g *Guard) Owner() int64 {
	if g == nil {
		return 0
	}
	return g.owner
}

// Check decides whether userID may run the privileged command. Denials are
// logged and never reported to the user.
func (g *Guard) Check(userID int64, command string) Decision {
	if g.IsAdmin(userID) {
		return Authorized
	}

	if g != nil {
		g.logger.WithFields(logging.Fields{
			"event":   "command_denied",
			"user_id": userID,
			"command": command,
		}).Warn("unauthorized access denied")
	}

	return Denied
}
