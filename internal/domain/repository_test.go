package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestUserRepositoryGetByID(t *testing.T) {
	lastSeen := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	coll := newFakeFindCollection(t,
		bson.M{"user_id": int64(12345), "name": "Ana", "username": "ana", "last_seen": lastSeen},
	)
	repo := NewUserRepository(coll)

	found, err := repo.GetByID(context.Background(), 12345)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}

	if found.UserID != 12345 || found.Name != "Ana" || found.Username != "ana" {
		t.Fatalf("unexpected user %+v", found)
	}
	if !found.LastSeen.Equal(lastSeen) {
		t.Fatalf("expected last_seen %v, got %v", lastSeen, found.LastSeen)
	}
}

func TestUserRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewUserRepository(newFakeFindCollection(t))

	_, err := repo.GetByID(context.Background(), 1)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepositoryValidatesInput(t *testing.T) {
	var nilRepo *UserRepository
	if _, err := nilRepo.GetByID(context.Background(), 1); err == nil {
		t.Fatalf("expected error for nil repository")
	}

	repo := NewUserRepository(newFakeFindCollection(t))
	if _, err := repo.GetByID(nil, 1); err == nil {
		t.Fatalf("expected error for nil context")
	}
	if _, err := repo.GetByID(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero user id")
	}
}

func TestUserRepositoryNamesByID(t *testing.T) {
	coll := newFakeFindCollection(t,
		bson.M{"user_id": int64(1), "name": "Ana"},
		bson.M{"user_id": int64(2), "name": "Bob"},
		bson.M{"user_id": int64(3), "name": "Cid"},
	)
	repo := NewUserRepository(coll)

	names, err := repo.NamesByID(context.Background(), []int64{1, 3, 9})
	if err != nil {
		t.Fatalf("NamesByID returned error: %v", err)
	}

	if len(names) != 2 || names[1] != "Ana" || names[3] != "Cid" {
		t.Fatalf("unexpected names %v", names)
	}

	empty, err := repo.NamesByID(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result for no ids, got %v (%v)", empty, err)
	}
	if coll.findCalls != 1 {
		t.Fatalf("expected a single Find call, got %d", coll.findCalls)
	}
}

type fakeFindCollection struct {
	t         *testing.T
	docs      []bson.M
	findCalls int
}

func newFakeFindCollection(t *testing.T, docs ...bson.M) *fakeFindCollection {
	t.Helper()
	return &fakeFindCollection{t: t, docs: docs}
}

func (f *fakeFindCollection) FindOne(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	filterDoc, ok := filter.(bson.M)
	if !ok {
		return mongo.NewSingleResultFromDocument(nil, fmt.Errorf("unexpected filter type %T", filter), nil)
	}

	for _, doc := range f.docs {
		if doc["user_id"] == filterDoc["user_id"] {
			return mongo.NewSingleResultFromDocument(doc, nil, nil)
		}
	}

	return mongo.NewSingleResultFromDocument(nil, mongo.ErrNoDocuments, nil)
}

func (f *fakeFindCollection) Find(_ context.Context, filter interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	f.findCalls++

	filterDoc, ok := filter.(bson.M)
	if !ok {
		return nil, fmt.Errorf("unexpected filter type %T", filter)
	}
	in, ok := filterDoc["user_id"].(bson.M)["$in"].([]int64)
	if !ok {
		return nil, fmt.Errorf("expected $in filter, got %v", filterDoc)
	}

	wanted := make(map[int64]struct{}, len(in))
	for _, id := range in {
		wanted[id] = struct{}{}
	}

	var matches []interface{}
	for _, doc := range f.docs {
		if _, ok := wanted[doc["user_id"].(int64)]; ok {
			matches = append(matches, doc)
		}
	}

	return mongo.NewCursorFromDocuments(matches, nil, nil)
}
