package cli

// EnvPrefix namespaces environment overrides of the global flags,
// e.g. POTATO_SERVER
const EnvPrefix = "POTATO"

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://localhost:8080",
		Output:    "text",
	}
}
