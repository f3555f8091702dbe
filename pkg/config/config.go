// Package config loads optional probe settings from a YAML file and
// ESPROBE_* environment variables. Zero values mean "not set": command
// line flags fill in their own defaults and win over anything loaded here
// when given explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/amirimatin/eventstore-probes/pkg/security/tlsconfig"
)

// EnvPrefix is the environment prefix, e.g. ESPROBE_CLUSTER_DNS.
const EnvPrefix = "esprobe"

// AuthConfig holds HTTP basic auth credentials for the stats stream.
type AuthConfig struct {
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
}

// GossipConfig tunes check-gossip.
type GossipConfig struct {
	ExpectedNodes int    `yaml:"expected_nodes" split_words:"true"`
	Format        string `yaml:"format" split_words:"true"`
}

// ProjectionsConfig tunes check-projections and metrics-projections.
type ProjectionsConfig struct {
	ProgressMinimum float64 `yaml:"progress_minimum" split_words:"true"`
	Scheme          string  `yaml:"scheme" split_words:"true"`
}

// StatsConfig names the metric families of metrics-stats.
type StatsConfig struct {
	ProcScheme  string `yaml:"proc_scheme" split_words:"true"`
	QueueScheme string `yaml:"queue_scheme" split_words:"true"`
}

// ServeConfig drives the long-running exporter.
type ServeConfig struct {
	Listen     string        `yaml:"listen" split_words:"true"`
	GRPCListen string        `yaml:"grpc_listen" split_words:"true"`
	Interval   time.Duration `yaml:"interval" split_words:"true"`

	// BreakerThreshold consecutive failed requests stop the exporter from
	// hitting the event store for BreakerCooldown.
	BreakerThreshold uint32        `yaml:"breaker_threshold" split_words:"true"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" split_words:"true"`
	RateLimit        float64       `yaml:"rate_limit" split_words:"true"`
	RateBurst        int           `yaml:"rate_burst" split_words:"true"`
}

// Config is the union of all probe settings.
type Config struct {
	DiscoverViaDNS *bool         `yaml:"discover_via_dns" split_words:"true"`
	ClusterDNS     string        `yaml:"cluster_dns" split_words:"true"`
	Address        string        `yaml:"address" split_words:"true"`
	Port           int           `yaml:"port" split_words:"true"`
	DNSServers     []string      `yaml:"dns_servers" split_words:"true"`
	LocalAddrs     []string      `yaml:"local_addrs" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" split_words:"true"`
	Verbose        bool          `yaml:"verbose" split_words:"true"`
	Trace          bool          `yaml:"trace" split_words:"true"`

	// Identifier tags metrics with a specific event store instance.
	Identifier string   `yaml:"identifier" split_words:"true"`
	MetricPath string   `yaml:"metric_path" split_words:"true"`
	Streams    []string `yaml:"streams" split_words:"true"`

	Auth        AuthConfig        `yaml:"auth" split_words:"true"`
	TLS         tlsconfig.Options `yaml:"tls" split_words:"true"`
	Gossip      GossipConfig      `yaml:"gossip" split_words:"true"`
	Projections ProjectionsConfig `yaml:"projections" split_words:"true"`
	Stats       StatsConfig       `yaml:"stats" split_words:"true"`
	Serve       ServeConfig       `yaml:"serve" split_words:"true"`
}

// Load reads path when non-empty, then applies environment overrides. A
// path that does not exist is an error; an empty path loads from the
// environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range values. Unset fields are valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	if c.Gossip.ExpectedNodes < 0 {
		errs = append(errs, fmt.Errorf("gossip.expected_nodes %d is negative", c.Gossip.ExpectedNodes))
	}
	switch c.Gossip.Format {
	case "", "xml", "json":
	default:
		errs = append(errs, fmt.Errorf("gossip.format %q: want xml or json", c.Gossip.Format))
	}
	if p := c.Projections.ProgressMinimum; p < 0 || p > 100 {
		errs = append(errs, fmt.Errorf("projections.progress_minimum %g outside 0..100", p))
	}
	if c.Serve.Interval < 0 {
		errs = append(errs, fmt.Errorf("serve.interval %s is negative", c.Serve.Interval))
	}
	if c.Serve.BreakerCooldown < 0 {
		errs = append(errs, fmt.Errorf("serve.breaker_cooldown %s is negative", c.Serve.BreakerCooldown))
	}
	if c.Serve.RateLimit < 0 || c.Serve.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("serve.rate_limit %g and serve.rate_burst %d must not be negative", c.Serve.RateLimit, c.Serve.RateBurst))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
