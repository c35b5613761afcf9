package cache

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

const (
	mongoDefaultDB  = "jarprobe"
	mongoEntries    = "verified_artifacts"
	mongoMeta       = "jarprobe_meta"
	mongoSchemaID   = "schema"
	mongoDupKeyCode = 11000
)

type mongoEntry struct {
	Hash       string         `bson:"_id"`
	Coordinate gav.Coordinate `bson:"coordinate"`
	Repository string         `bson:"repository"`
	Private    bool           `bson:"private"`
}

type mongoSchema struct {
	ID     string `bson:"_id"`
	Schema `bson:",inline"`
}

// MongoStore keeps one document per hash with the hash as _id; the
// unique index on _id makes the first insert win.
type MongoStore struct {
	client  *mongo.Client
	entries *mongo.Collection
	meta    *mongo.Collection
}

// NewMongoStore connects to the deployment named by a mongodb:// URI. The
// database is taken from the URI path, defaulting to "jarprobe".
func NewMongoStore(ctx context.Context, dsn string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open mongo cache")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect mongo cache")
	}

	db := client.Database(mongoDatabase(dsn))
	s := &MongoStore{
		client:  client,
		entries: db.Collection(mongoEntries),
		meta:    db.Collection(mongoMeta),
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return mongoDefaultDB
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return mongoDefaultDB
}

func (s *MongoStore) ensureSchema(ctx context.Context) error {
	_, err := s.meta.InsertOne(ctx, mongoSchema{ID: mongoSchemaID, Schema: ExpectedSchema})
	if err != nil && !isDuplicateKey(err) {
		return err
	}
	var found mongoSchema
	if err := s.meta.FindOne(ctx, bson.M{"_id": mongoSchemaID}).Decode(&found); err != nil {
		return err
	}
	if !found.Schema.Equal(ExpectedSchema) {
		return schemaMismatch("mongo", found.Schema)
	}
	return nil
}

// Get retrieves the entry for hash.
func (s *MongoStore) Get(ctx context.Context, hash string) (Entry, bool, error) {
	var doc mongoEntry
	err := s.entries.FindOne(ctx, bson.M{"_id": hash}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Coordinate: doc.Coordinate, Repository: doc.Repository, Private: doc.Private}, true, nil
}

// Put inserts e unless a document for hash exists.
func (s *MongoStore) Put(ctx context.Context, hash string, e Entry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	_, err := s.entries.InsertOne(ctx, mongoEntry{
		Hash:       hash,
		Coordinate: e.Coordinate,
		Repository: e.Repository,
		Private:    e.Private,
	})
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var we mongo.WriteException
	if stderrors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == mongoDupKeyCode {
				return true
			}
		}
	}
	return false
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
