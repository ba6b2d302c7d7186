package tracing

import "fmt"

// Config describes how spans of one service are exported. Values come from the
// service's own configuration loader.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	InstanceID     string

	// OTLPExporterEndpoint is the collector address. Empty disables export.
	OTLPExporterEndpoint string
	OTLPExporterInsecure bool

	// SamplingRatio applies to root spans; children follow their parent.
	SamplingRatio float64
}

// Enabled reports whether spans should be exported.
func (c *Config) Enabled() bool {
	return c.OTLPExporterEndpoint != ""
}

func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return &ConfigError{Field: "ServiceName", Message: "must not be empty"}
	case c.SamplingRatio < 0 || c.SamplingRatio > 1:
		return &ConfigError{Field: "SamplingRatio", Message: fmt.Sprintf("%v is outside [0, 1]", c.SamplingRatio)}
	}
	return nil
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tracing config error: %s: %s", e.Field, e.Message)
}
