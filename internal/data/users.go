// Package data provides DB models and stores.
package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"fmt"
	"strings"
	"time" // Timestamps

	"github.com/PaulBabatuyi/socialchat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"  // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo" // MongoDB driver
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed password.
func (u *UsersStore) CreateUser(ctx context.Context, name, username, email, hashedPassword string) (*User, error) {
	username = normalize.Username(username)
	email = normalize.Email(email)
	if username == "" || email == "" || hashedPassword == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}

	now := time.Now().UTC()
	user := &User{
		Name:      strings.TrimSpace(name),
		Username:  username,
		Email:     email, // stored normalized so logins are case-insensitive
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique indexes on email and username surface here
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: user with this email or username", ErrDuplicate)
		}
		return nil, err
	}

	// MongoDB auto-generates the _id field; extract it and set on User struct
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id.Hex())
		}
		return nil, err
	}
	return &user, nil
}

// UsersExist reports whether every id references an existing user.
func (u *UsersStore) UsersExist(ctx context.Context, ids []bson.ObjectID) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	// duplicates would inflate the expected count
	unique := make(map[bson.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	list := make(bson.A, 0, len(unique))
	for id := range unique {
		list = append(list, id)
	}

	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": list}})
	if err != nil {
		return false, err
	}
	return count == int64(len(unique)), nil
}
