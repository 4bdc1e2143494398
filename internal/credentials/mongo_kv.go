package credentials

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// kvDocument is one stored key. _id is "<prefix><key>".
type kvDocument struct {
	ID        string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoKV implements KV using a Mongo collection, one document per key.
type MongoKV struct {
	col    *mongo.Collection
	prefix string
}

func NewMongoKV(col *mongo.Collection, prefix string) *MongoKV {
	return &MongoKV{col: col, prefix: prefix}
}

func (r *MongoKV) id(key string) string {
	return r.prefix + key
}

func (r *MongoKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc kvDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": r.id(key)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Value), true, nil
}

func (r *MongoKV) Set(ctx context.Context, key string, value []byte) error {
	doc := kvDocument{ID: r.id(key), Value: string(value), UpdatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *MongoKV) Delete(ctx context.Context, key string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": r.id(key)})
	return err
}
