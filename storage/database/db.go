package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trezcool/skytraining/core"
)

// Collections
const (
	UsersCollection       = "users"
	CoursesCollection     = "courses"
	EnrollmentsCollection = "enrollments"
)

// Open connects to the MongoDB deployment at `database.uri` and waits for it to answer.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetAppName(conf.AppName)
	if conf.Database.ConnectTimeout > 0 {
		opts.SetConnectTimeout(conf.Database.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err = ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging database")
	}
	return client, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping cancelled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userType", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CoursesCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "featured", Value: 1}}},
		},
		EnrollmentsCollection: {
			{
				Keys:    bson.D{{Key: "student", Value: 1}, {Key: "course", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "enrollmentDate", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}
