// Package testutil starts the external services integration tests run against.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/db"

	"github.com/jaevor/go-nanoid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/multierr"
)

// Cleanup releases whatever a Start function acquired.
type Cleanup func() error

const (
	mongoExpireSeconds = 120

	nameCharacters   = "abcdefghijklmnopqrstuvwxyz"
	nameNanoIDLength = 12
)

func noop() error { return nil }

// StartMongo returns a MongoDB URI for tests. MONGODB_URI wins when set; otherwise a
// throwaway mongo container is started through Docker.
func StartMongo(pool *dockertest.Pool) (_ string, _ Cleanup, err error) {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		return uri, noop, nil
	}

	if pool == nil {
		pool, err = dockertest.NewPool("")
		if err != nil {
			return "", nil, fmt.Errorf("could not construct pool: %w", err)
		}
	}
	if err = pool.Client.Ping(); err != nil {
		return "", nil, fmt.Errorf("could not connect to Docker: %w", err)
	}

	generateID, err := nanoid.CustomASCII(nameCharacters, nameNanoIDLength)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate container name: %w", err)
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Name:       "socialchat-mongo_" + generateID(),
			Repository: "mongo",
			Tag:        "7",
		},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		},
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to run mongo container: %w", err)
	}

	cleanup := func() error {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			return fmt.Errorf("failed to purge mongo container: %w", purgeErr)
		}
		return nil
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, cleanup())
		}
	}()

	if err = resource.Expire(mongoExpireSeconds); err != nil {
		return "", nil, fmt.Errorf("failed to set expire time: %w", err)
	}

	uri := fmt.Sprintf("mongodb://%s", resource.GetHostPort("27017/tcp"))

	pool.MaxWait = time.Minute
	err = pool.Retry(func() error {
		client, retryErr := mongo.Connect(options.Client().ApplyURI(uri))
		if retryErr != nil {
			return retryErr
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		return client.Ping(context.Background(), nil)
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	return uri, cleanup, nil
}

// MongoClient connects to uri using a database unique to the test, creates the indexes
// and drops the database when the test ends. The test is skipped when uri is empty.
func MongoClient(t testing.TB, uri string) *db.Client {
	t.Helper()
	if uri == "" {
		t.Skip("MongoDB unavailable; skipping integration test")
	}

	generateID, err := nanoid.CustomASCII(nameCharacters, nameNanoIDLength)
	if err != nil {
		t.Fatalf("failed to generate database name: %v", err)
	}
	database := "socialchat_test_" + generateID()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := db.New(ctx, uri, database, nil)
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := multierr.Append(c.Drop(ctx), c.Close(ctx))
		if err != nil {
			t.Logf("cleanup: %v", err)
		}
	})
	return c
}
