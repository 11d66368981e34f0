// Package mongostore persists batch runs in MongoDB.
package mongostore

import (
	"context"
	"errors"

	"github.com/Abraxas-365/visionocr/storex"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the collection runs are written to
const Collection = "ocr_runs"

// Store is a storex.RunStore over a MongoDB collection
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ storex.RunStore = (*Store)(nil)

// Open connects to uri and uses database
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storex.ErrRegistry.NewWithCause(storex.ErrConnectionFailed, err).
			WithDetail("driver", "mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, storex.ErrRegistry.NewWithCause(storex.ErrConnectionFailed, err).
			WithDetail("driver", "mongo")
	}
	s := New(client.Database(database).Collection(Collection))
	s.client = client
	return s, nil
}

// New wraps an existing collection
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) SaveRun(ctx context.Context, run storex.Run) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, options.Replace().SetUpsert(true))
	if err != nil {
		return storex.ErrRegistry.NewWithCause(storex.ErrSaveFailed, err).
			WithDetail("id", run.ID).
			WithDetail("collection", s.coll.Name())
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (storex.Run, error) {
	var run storex.Run
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storex.Run{}, storex.NotFound(id)
	}
	if err != nil {
		return storex.Run{}, storex.ErrRegistry.NewWithCause(storex.ErrDecodeFailed, err).
			WithDetail("id", id).
			WithDetail("collection", s.coll.Name())
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, opts storex.PaginationOptions) (storex.Paginated[storex.Run], error) {
	opts = opts.Normalize()
	filter := listFilter(opts)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return storex.Paginated[storex.Run]{}, storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).
			WithDetail("operation", "count")
	}

	find := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetSkip(int64(opts.Offset())).
		SetLimit(int64(opts.PageSize))
	cursor, err := s.coll.Find(ctx, filter, find)
	if err != nil {
		return storex.Paginated[storex.Run]{}, storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).
			WithDetail("operation", "list")
	}
	defer cursor.Close(ctx)

	var runs []storex.Run
	if err := cursor.All(ctx, &runs); err != nil {
		return storex.Paginated[storex.Run]{}, storex.ErrRegistry.NewWithCause(storex.ErrDecodeFailed, err).
			WithDetail("collection", s.coll.Name())
	}
	return storex.NewPaginated(runs, opts.Page, opts.PageSize, int(total)), nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func listFilter(opts storex.PaginationOptions) bson.M {
	filter := bson.M{}
	if opts.Backend != "" {
		filter["backend"] = opts.Backend
	}
	return filter
}
