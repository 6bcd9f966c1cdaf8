package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
listeners:
  - name: json-plain
    address: ":4560"
    encoding: json
  - name: legacy
    address: ":4561"
    encoding: binary
    detect_compression: false
    read_timeout: 30s
    allowed_types: [trace]
timeseries:
  backend: influxdb
  influxdb:
    url: ${TALLY_TEST_INFLUX_URL:-http://localhost:8086}
    token: ${TALLY_TEST_INFLUX_TOKEN}
    org: acme
`

func TestParse(t *testing.T) {
	t.Run("Applies defaults and expands environment variables", func(t *testing.T) {
		t.Setenv("TALLY_TEST_INFLUX_TOKEN", "secret")
		cfg, err := Parse([]byte(sampleConfig))
		require.NoError(t, err)

		require.Len(t, cfg.Listeners, 2)
		plain := cfg.Listeners[0]
		assert.Equal(t, DefaultReadTimeout, plain.ReadTimeout)
		assert.True(t, plain.CompressionDetection())
		assert.Equal(t, DefaultMaxPendingBytes, plain.MaxPendingBytes)
		kinds, err := plain.AllowedKinds()
		require.NoError(t, err)
		assert.Equal(t, model.AllKinds, kinds)

		legacy := cfg.Listeners[1]
		assert.False(t, legacy.CompressionDetection())
		assert.Equal(t, 30*time.Second, legacy.ReadTimeout)
		assert.Equal(t, []string{"trace"}, legacy.AllowedTypes)

		assert.Equal(t, "http://localhost:8086", cfg.Timeseries.InfluxDB.URL)
		assert.Equal(t, "secret", cfg.Timeseries.InfluxDB.Token)
		assert.Equal(t, DefaultPartitionSlots, cfg.Timeseries.PartitionSlots)
		assert.Equal(t, DefaultFlushInterval, cfg.Timeseries.Elasticsearch.FlushInterval)
	})

	t.Run("Returns error for duplicate listener names", func(t *testing.T) {
		_, err := Parse([]byte(`
listeners:
  - {name: a, address: ":1", encoding: json}
  - {name: a, address: ":2", encoding: json}
`))
		assert.ErrorContains(t, err, "duplicate name")
	})

	t.Run("Returns error for an unknown encoding and allowed type", func(t *testing.T) {
		_, err := Parse([]byte(`
listeners:
  - {name: a, address: ":1", encoding: xml, allowed_types: [invoice]}
`))
		assert.ErrorContains(t, err, "unknown encoding")
		assert.ErrorIs(t, err, model.ErrUnknownKind)
	})

	t.Run("Returns error when tls is half configured", func(t *testing.T) {
		_, err := Parse([]byte(`
listeners:
  - {name: a, address: ":1", encoding: json, tls: {cert_file: server.pem}}
`))
		assert.ErrorContains(t, err, "tls needs both")
	})
}

func TestLoad(t *testing.T) {
	t.Run("Reads the file from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tally.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, BackendNone, cfg.Timeseries.Backend)
	})

	t.Run("Returns error if the file is missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
