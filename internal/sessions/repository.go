package sessions

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repository provides session persistence operations. GetByRefresh returns
// (nil, nil) for unknown tokens.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByRefresh(ctx context.Context, refresh string) (*Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
}

// MemoryRepository keeps sessions in process
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]Session{}}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[s.RefreshToken] = *s
	return nil
}

func (r *MemoryRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[refresh]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, refresh)
	return nil
}

// MongoRepository implements Repository using a Mongo collection keyed by refresh token
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, bson.M{"_id": refresh}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": refresh})
	return err
}
