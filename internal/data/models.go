package data

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to users collection (id, profile, password hash, timestamps)
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string        `bson:"name" json:"name"`
	Username  string        `bson:"username" json:"username"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// LastMessage is the preview kept on a conversation so lists don't need a join.
type LastMessage struct {
	Text   string        `bson:"text" json:"text"`
	Sender bson.ObjectID `bson:"sender" json:"sender"`
	Seen   bool          `bson:"seen" json:"seen"`
}

// Conversation maps to conversations collection. Participants never change after insert.
type Conversation struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Participants    []bson.ObjectID `bson:"participants" json:"participants"`
	ParticipantsKey string          `bson:"participants_key" json:"-"`
	LastMessage     *LastMessage    `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID bson.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Others returns every participant except userID.
func (c *Conversation) Others(userID bson.ObjectID) []bson.ObjectID {
	others := make([]bson.ObjectID, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// Message maps to messages collection (conversation, sender, text/img, seen flag)
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	ConversationID bson.ObjectID `bson:"conversation_id" json:"conversationId"`
	Sender         bson.ObjectID `bson:"sender" json:"sender"`
	Text           string        `bson:"text" json:"text"`
	Img            string        `bson:"img" json:"img"`
	Seen           bool          `bson:"seen" json:"seen"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ParseID converts a hex string into an ObjectID, reporting bad input as ErrValidation.
func ParseID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: invalid id %q", ErrValidation, hex)
	}
	return id, nil
}

// ParticipantSet deduplicates and sorts ids and returns them together with the key
// used to look up a conversation by its exact participant set.
func ParticipantSet(ids []bson.ObjectID) ([]bson.ObjectID, string, error) {
	seen := make(map[bson.ObjectID]struct{}, len(ids))
	set := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return nil, "", fmt.Errorf("%w: participant id must not be empty", ErrValidation)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	if len(set) < 2 {
		return nil, "", fmt.Errorf("%w: a conversation needs at least two distinct participants", ErrValidation)
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Hex() < set[j].Hex() })

	hexes := make([]string, len(set))
	for i, id := range set {
		hexes[i] = id.Hex()
	}
	return set, strings.Join(hexes, ","), nil
}
