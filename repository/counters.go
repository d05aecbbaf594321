package repository

import (
	"context"

	"github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-auth-service"
)

// Counters hands out auto-incrementing sequence values backed by counter
// documents of the shape {_id: <name>, seq: <int>}.
type Counters struct {
	coll *mongo.Collection
}

// NewCountersRepository wraps the counters collection.
func NewCountersRepository(coll *mongo.Collection) *Counters {
	return &Counters{coll: coll}
}

var _ auth.SequenceAllocator = (*Counters)(nil)

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// Next atomically increments and returns the named sequence, creating the
// counter document on first use.
func (r *Counters) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	doc := counterDocument{}
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to advance sequence").
			WithMetadata(map[string]any{"sequence": name})
	}

	return doc.Seq, nil
}
