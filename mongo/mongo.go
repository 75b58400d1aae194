// Package mongo stores contacts as documents in a MongoDB collection, using
// the same field names the website's first backend wrote.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	intake "github.com/phbpx/contact-intake"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config is the required properties to reach the collection.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type document struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Email         string    `bson:"email"`
	Organization  string    `bson:"organization,omitempty"`
	Role          string    `bson:"role,omitempty"`
	InquiryType   string    `bson:"inquiryType"`
	Message       string    `bson:"message"`
	AgreedToTerms bool      `bson:"agreedToTerms"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// Store writes contacts into a single collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Open connects to MongoDB. The driver connects lazily, so an unreachable
// server is reported by StatusCheck rather than here.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetRetryWrites(false)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	return &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func toDocument(c intake.Contact) document {
	return document{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Organization:  c.Organization,
		Role:          c.Role,
		InquiryType:   c.InquiryType,
		Message:       c.Message,
		AgreedToTerms: c.AgreedToTerms,
		CreatedAt:     c.CreatedAt,
	}
}

func (s *Store) Save(ctx context.Context, c intake.Contact) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(c)); err != nil {
		return fmt.Errorf("inserting contact: %w", err)
	}
	return nil
}

func (s *Store) StatusCheck(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Migrate installs a JSON schema validator mirroring the required fields, so
// writes that bypass the service are rejected too. An existing collection
// keeps its data and only has its validator replaced.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.collection.Database()
	name := s.collection.Name()

	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	validator := bson.D{{Key: "$jsonSchema", Value: contactSchema()}}

	if len(names) == 0 {
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		return nil
	}

	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("updating validator of %s: %w", name, err)
	}
	return nil
}

func contactSchema() bson.M {
	nonEmpty := bson.M{"bsonType": "string", "minLength": 1}
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"name", "email", "inquiryType", "message", "agreedToTerms", "createdAt"},
		"properties": bson.M{
			"name":          nonEmpty,
			"email":         nonEmpty,
			"organization":  bson.M{"bsonType": "string"},
			"role":          bson.M{"bsonType": "string"},
			"inquiryType":   nonEmpty,
			"message":       nonEmpty,
			"agreedToTerms": bson.M{"bsonType": "bool"},
			"createdAt":     bson.M{"bsonType": "date"},
		},
	}
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
