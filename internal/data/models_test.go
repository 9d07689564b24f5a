package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParticipantSetDeduplicatesAndSorts(t *testing.T) {
	a, b := bson.NewObjectID(), bson.NewObjectID()

	set1, key1, err := ParticipantSet([]bson.ObjectID{b, a, b})
	require.NoError(t, err)
	require.Len(t, set1, 2)

	set2, key2, err := ParticipantSet([]bson.ObjectID{a, b})
	require.NoError(t, err)
	require.Equal(t, set1, set2)
	require.Equal(t, key1, key2)
	require.Equal(t, 1, strings.Count(key1, ","))
}

func TestParticipantSetRequiresTwoDistinct(t *testing.T) {
	a := bson.NewObjectID()

	_, _, err := ParticipantSet([]bson.ObjectID{a, a})
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = ParticipantSet(nil)
	require.ErrorIs(t, err, ErrValidation)

	_, _, err = ParticipantSet([]bson.ObjectID{a, bson.NilObjectID})
	require.ErrorIs(t, err, ErrValidation)
}

func TestConversationParticipants(t *testing.T) {
	a, b, c := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()
	conv := &Conversation{Participants: []bson.ObjectID{a, b, c}}

	require.True(t, conv.HasParticipant(b))
	require.False(t, conv.HasParticipant(bson.NewObjectID()))
	require.Equal(t, []bson.ObjectID{a, c}, conv.Others(b))
}

func TestParseID(t *testing.T) {
	id := bson.NewObjectID()
	got, err := ParseID(" " + id.Hex() + " ")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseID("not-an-id")
	require.ErrorIs(t, err, ErrValidation)
}
