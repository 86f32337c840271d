package mongoq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// offlineDB returns a database handle without dialing the server; the
// driver connects lazily, which is all configuration tests need.
func offlineDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	return client.Database("mongoq_config_test")
}

func TestNew_RequiresConfig(t *testing.T) {
	q, err := New(nil)

	assert.Nil(t, q)
	assert.Error(t, err)
}

func TestNew_RequiresDBAndName(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "missing DB", config: &Config{Name: "jobs"}},
		{name: "missing name", config: &Config{DB: offlineDB(t)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := New(tc.config)

			assert.Nil(t, q)
			assert.Error(t, err)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	q, err := New(&Config{DB: offlineDB(t), Name: "jobs"})
	require.NoError(t, err)

	impl, ok := q.(*queue)
	require.True(t, ok)

	assert.Equal(t, 30*time.Second, impl.visibility)
	assert.Equal(t, time.Duration(0), impl.delay)
	assert.Equal(t, RetryForever(), impl.retry)
	assert.Nil(t, impl.cleanAfter)
}

func TestNew_RejectsInvalidDurations(t *testing.T) {
	db := offlineDB(t)
	negative := -time.Second

	tests := []struct {
		name   string
		config *Config
	}{
		{
			name:   "negative delay",
			config: &Config{DB: db, Name: "jobs", Delay: -time.Second},
		},
		{
			name:   "negative visibility",
			config: &Config{DB: db, Name: "jobs", Visibility: -time.Second},
		},
		{
			name:   "negative clean after",
			config: &Config{DB: db, Name: "jobs", CleanAfter: &negative},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := New(tc.config)

			assert.Nil(t, q)
			assert.Error(t, err)
		})
	}
}
