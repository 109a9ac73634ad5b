package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/hbkit/hbkit/errortypes"
)

// Configuration specifies the static application config.
type Configuration struct {
	ExternalURL string `mapstructure:"external_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	EnableGzip  bool   `mapstructure:"enable_gzip"`
	DataCenter  string `mapstructure:"datacenter"`

	// StatusResponse is the string which will be returned by the /status endpoint when things are OK.
	// If empty, it will return a 204 with no content.
	StatusResponse string `mapstructure:"status_response"`

	Client  HTTPClient `mapstructure:"http_client"`
	Metrics Metrics    `mapstructure:"metrics"`
	GDPR    GDPR       `mapstructure:"gdpr"`

	// Adapters overrides the static bidder info per bidder, keyed by lower case bidder name.
	Adapters map[string]Adapter `mapstructure:"adapters"`

	// Modules carries the raw per-vendor module configs, keyed as modules.{vendor}.{module}.
	Modules Modules `mapstructure:"modules"`
}

// Modules mapping provides module specific configuration, format: map[vendor_name]map[module_name]interface{}
type Modules map[string]map[string]interface{}

// HTTPClient specifies the connection pool of the client used to reach external services.
type HTTPClient struct {
	MaxConnsPerHost     int `mapstructure:"max_connections_per_host"`
	MaxIdleConns        int `mapstructure:"max_idle_connections"`
	MaxIdleConnsPerHost int `mapstructure:"max_idle_connections_per_host"`
	IdleConnTimeout     int `mapstructure:"idle_connection_timeout_seconds"`
}

// Metrics groups the metrics reporter configs.
type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

// PrometheusMetrics configures the prometheus metrics server. A port of 0 disables it.
type PrometheusMetrics struct {
	Port             int    `mapstructure:"port"`
	Namespace        string `mapstructure:"namespace"`
	Subsystem        string `mapstructure:"subsystem"`
	TimeoutMillisRaw int    `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMillisRaw) * time.Millisecond
}

// GDPR carries the host level consent defaults.
type GDPR struct {
	// DefaultValue decides whether GDPR is assumed to apply when the request doesn't say.
	// Must be "0" or "1".
	DefaultValue string `mapstructure:"default_value"`

	// HostVendorID is the GVL id the host itself operates under. 0 means unset.
	HostVendorID int `mapstructure:"host_vendor_id"`
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	if errs := c.validate(); len(errs) > 0 {
		return &c, errortypes.NewAggregateError("validation errors", errs)
	}

	return &c, nil
}

func (cfg *Configuration) validate() []error {
	var errs []error

	if cfg.Port <= 0 {
		errs = append(errs, fmt.Errorf("port must be positive. Got %d", cfg.Port))
	}

	if cfg.ExternalURL != "" {
		if _, err := url.Parse(cfg.ExternalURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid external_url: %v", err))
		}
	}

	if cfg.GDPR.DefaultValue != "0" && cfg.GDPR.DefaultValue != "1" {
		errs = append(errs, fmt.Errorf("gdpr.default_value must be 0 or 1"))
	}

	return errs
}

// SetupViper sets the viper defaults, the config file lookup paths and the
// environment variable bindings. Environment variables use the HB prefix,
// for example HB_PORT overrides port.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("datacenter", "")

	v.SetDefault("http_client.max_connections_per_host", 0) // unlimited
	v.SetDefault("http_client.max_idle_connections", 400)
	v.SetDefault("http_client.max_idle_connections_per_host", 10)
	v.SetDefault("http_client.idle_connection_timeout_seconds", 60)

	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)

	v.SetDefault("gdpr.default_value", "1")
	v.SetDefault("gdpr.host_vendor_id", 0)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("HB")
	v.AutomaticEnv()
	v.ReadInConfig()

	if filename != "" && v.ConfigFileUsed() == "" {
		glog.Infof("no config file %s found, continuing with defaults", filename)
	}
}
