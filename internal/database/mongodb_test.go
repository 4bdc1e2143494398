package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExpiryIndex(t *testing.T) {
	idx := ExpiryIndex("expiresAt")
	assert.Equal(t, bson.D{{Key: "expiresAt", Value: 1}}, idx.Keys)
	if assert.NotNil(t, idx.Options) {
		assert.Equal(t, int32(0), *idx.Options.ExpireAfterSeconds)
		assert.Equal(t, "expiresAt_ttl", *idx.Options.Name)
	}
}

func TestConnectMongo_EmptyURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "", 0)
	assert.Error(t, err)
}
