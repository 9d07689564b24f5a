package data

import (
	"log"
	"os"
	"testing"

	"github.com/PaulBabatuyi/socialchat/internal/testutil"
)

// mongoURI is empty when neither MONGODB_URI nor Docker is available; the store
// tests skip in that case.
var mongoURI string

func TestMain(m *testing.M) {
	uri, cleanup, err := testutil.StartMongo(nil)
	if err != nil {
		log.Printf("MongoDB unavailable, integration tests will be skipped: %v", err)
	}
	mongoURI = uri

	code := m.Run()

	if cleanup != nil {
		if err := cleanup(); err != nil {
			log.Print(err)
		}
	}
	os.Exit(code)
}
