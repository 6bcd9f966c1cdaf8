// Package config loads the collector configuration from a single YAML file.
//
// Values of the form ${VAR} or ${VAR:-default} are expanded from the
// environment before the file is parsed, so backend URLs and tokens can be
// supplied by the deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"gopkg.in/yaml.v3"
)

type Encoding string

const (
	EncodingJSON   Encoding = "json"
	EncodingBinary Encoding = "binary"
)

type Backend string

const (
	BackendNone          Backend = "none"
	BackendInfluxDB      Backend = "influxdb"
	BackendElasticsearch Backend = "elasticsearch"
)

const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultMaxPendingBytes = 16 << 20
	DefaultPartitionSlots  = 19
	DefaultFlushSize       = 30
	DefaultFlushInterval   = 5 * time.Second
)

type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Listeners  []Listener       `yaml:"listeners"`
	OTLP       OTLPConfig       `yaml:"otlp"`
	HTTP       HTTPConfig       `yaml:"http"`
	Timeseries TimeseriesConfig `yaml:"timeseries"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// Listener describes one ingestion socket. Each listener owns its own port.
type Listener struct {
	Name              string        `yaml:"name"`
	Address           string        `yaml:"address"`
	Encoding          Encoding      `yaml:"encoding"`
	DetectCompression *bool         `yaml:"detect_compression"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	MaxPendingBytes   int           `yaml:"max_pending_bytes"`
	// AllowedTypes is the binary-mode allow-list. It is never widened at runtime.
	AllowedTypes []string  `yaml:"allowed_types"`
	TLS          TLSConfig `yaml:"tls"`
}

func (l Listener) CompressionDetection() bool {
	return l.DetectCompression == nil || *l.DetectCompression
}

func (l Listener) AllowedKinds() ([]model.EventKind, error) {
	kinds := make([]model.EventKind, 0, len(l.AllowedTypes))
	for _, name := range l.AllowedTypes {
		kind, err := model.ParseEventKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

type TLSConfig struct {
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	ClientCAFile string `yaml:"client_ca_file"`
}

func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

type OTLPConfig struct {
	Address string `yaml:"address"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type TimeseriesConfig struct {
	Backend        Backend             `yaml:"backend"`
	PartitionSlots int                 `yaml:"partition_slots"`
	InfluxDB       InfluxDBConfig      `yaml:"influxdb"`
	Elasticsearch  ElasticsearchConfig `yaml:"elasticsearch"`
}

type InfluxDBConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	Org   string `yaml:"org"`
}

type ElasticsearchConfig struct {
	Addresses   []string `yaml:"addresses"`
	IndexPrefix string   `yaml:"index_prefix"`
	FlushSize   int      `yaml:"flush_size"`

	// FlushInterval bounds how long a point waits in a partly filled buffer.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Timeseries: TimeseriesConfig{
			Backend:        BackendNone,
			PartitionSlots: DefaultPartitionSlots,
			Elasticsearch: ElasticsearchConfig{
				IndexPrefix: "tally",
				FlushSize:     DefaultFlushSize,
				FlushInterval: DefaultFlushInterval,
			},
		},
		Tracing: TracingConfig{
			ServiceName: "tally",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := expandVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.applyListenerDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyListenerDefaults() {
	for i := range c.Listeners {
		l := &c.Listeners[i]
		if l.ReadTimeout == 0 {
			l.ReadTimeout = DefaultReadTimeout
		}
		if l.MaxPendingBytes == 0 {
			l.MaxPendingBytes = DefaultMaxPendingBytes
		}
		if len(l.AllowedTypes) == 0 {
			for _, kind := range model.AllKinds {
				l.AllowedTypes = append(l.AllowedTypes, string(kind))
			}
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	names := make(map[string]struct{})
	for i, l := range c.Listeners {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("listeners[%d]: name is required", i))
		} else if _, dup := names[l.Name]; dup {
			errs = append(errs, fmt.Errorf("listeners[%d]: duplicate name %q", i, l.Name))
		}
		names[l.Name] = struct{}{}
		if l.Address == "" {
			errs = append(errs, fmt.Errorf("listener %q: address is required", l.Name))
		}
		if l.Encoding != EncodingJSON && l.Encoding != EncodingBinary {
			errs = append(errs, fmt.Errorf("listener %q: unknown encoding %q", l.Name, l.Encoding))
		}
		if l.TLS.Enabled() && (l.TLS.CertFile == "" || l.TLS.KeyFile == "") {
			errs = append(errs, fmt.Errorf("listener %q: tls needs both cert_file and key_file", l.Name))
		}
		if _, err := l.AllowedKinds(); err != nil {
			errs = append(errs, fmt.Errorf("listener %q: %w", l.Name, err))
		}
	}

	switch c.Timeseries.Backend {
	case BackendNone:
	case BackendInfluxDB:
		if c.Timeseries.InfluxDB.URL == "" {
			errs = append(errs, errors.New("timeseries.influxdb.url is required"))
		}
	case BackendElasticsearch:
		if len(c.Timeseries.Elasticsearch.Addresses) == 0 {
			errs = append(errs, errors.New("timeseries.elasticsearch.addresses is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown timeseries backend %q", c.Timeseries.Backend))
	}
	if c.Timeseries.PartitionSlots <= 0 {
		errs = append(errs, errors.New("timeseries.partition_slots must be positive"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	return errors.Join(errs...)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
