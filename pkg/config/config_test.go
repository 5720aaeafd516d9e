package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 5, c.Sync.Parallelism)
	assert.Equal(t, 3, c.Sync.MaxRetry)
	assert.Equal(t, 30*time.Minute, c.Sync.LockTTL)
	assert.Equal(t, "mongo", c.Store.Type)
	assert.Equal(t, "huobi", c.Source.Type)
	assert.True(t, c.Mongo.CreateIndexes)
	assert.Len(t, c.Sync.Series, 11)
	assert.Equal(t, []string{"1d", "4h", "1h", "15m", "5m", "1m"}, c.Sync.Series["btcusdt"])
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
metrics:
  enabled: false
sync:
  parallelism: 2
  series:
    btcusdt: [1h, 1d]
mongo:
  create_indexes: false
`))
	require.NoError(t, err)

	assert.False(t, c.Metrics.Enabled)
	assert.False(t, c.Mongo.CreateIndexes)
	assert.Equal(t, 2, c.Sync.Parallelism)
	assert.Equal(t, map[string][]string{"btcusdt": {"1h", "1d"}}, c.Sync.Series)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"parallelism": "sync:\n  parallelism: -1\n",
		"store":       "store:\n  type: postgres\n",
		"source":      "source:\n  type: okx\n",
		"no periods":  "sync:\n  series:\n    btcusdt: []\n",
		"kafka":       "kafka:\n  enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("NOSQL_CONNECTION_STRING", "mongodb://db:27017")
	t.Setenv("DB_NAME", "market")
	t.Setenv("COLLECTION_NAME", "ohlc")
	t.Setenv("EX_API_PARALLEL_TASKS", "8")
	t.Setenv("EX_API_MAX_RETRY", "6")
	t.Setenv("ALLOW_ASYNC_INSERT", "true")
	t.Setenv("USE_SSL", "true")
	t.Setenv("CREATE_DEFAULT_INDEXES", "false")
	t.Setenv("SYNC_CRON", "0 * * * *")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")

	c, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", c.Mongo.URI)
	assert.Equal(t, "market", c.Mongo.Database)
	assert.Equal(t, "ohlc", c.Mongo.Collection)
	assert.Equal(t, "ohlc", c.ClickHouse.Table)
	assert.Equal(t, 8, c.Sync.Parallelism)
	assert.Equal(t, 6, c.Sync.MaxRetry)
	assert.True(t, c.Sync.AsyncInsert)
	assert.True(t, c.Mongo.UseSSL)
	assert.False(t, c.Mongo.CreateIndexes)
	assert.Equal(t, "0 * * * *", c.Sync.Cron)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache:6379", c.Redis.Addr)
}

func TestLoadWithEnv_InvalidOverride(t *testing.T) {
	t.Setenv("STORE_TYPE", "sqlite")
	_, err := LoadWithEnv("")
	assert.Error(t, err)
}
