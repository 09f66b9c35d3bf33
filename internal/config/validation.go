package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/h4x3rotab/repoview/internal/logging"
)

// ValidationError is one problem with a configuration field.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String formats every issue with its suggestions, errors first.
func (vr *ValidationResult) String() string {
	var b strings.Builder

	write := func(heading string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		b.WriteString(heading + ":\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "  - %s: %s\n", issue.Field, issue.Message)
			for _, s := range issue.Suggestions {
				fmt.Fprintf(&b, "      %s\n", s)
			}
		}
	}
	write("errors", vr.Errors)
	write("warnings", vr.Warnings)

	return b.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Validate checks every section and collects all problems.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	if info, err := os.Stat(cfg.Repo); err != nil {
		result.addError("repo", cfg.Repo, "repository directory is not accessible", "Pass an existing directory as the first argument")
	} else if !info.IsDir() {
		result.addError("repo", cfg.Repo, "repository path is not a directory")
	}

	validateServer(&cfg.Server, result)

	if cfg.Scan.MaxFiles <= 0 {
		result.addError("scan.max_files", cfg.Scan.MaxFiles, "must be positive")
	}
	if cfg.Scan.MaxBytesPerFile <= 0 {
		result.addError("scan.max_bytes_per_file", cfg.Scan.MaxBytesPerFile, "must be positive")
	}
	if cfg.Scan.Concurrency <= 0 {
		result.addError("scan.concurrency", cfg.Scan.Concurrency, "must be positive")
	} else if cfg.Scan.Concurrency > 256 {
		result.addWarning("scan.concurrency", cfg.Scan.Concurrency, "very high concurrency rarely speeds up a scan")
	}
	if cfg.Render.MaxBytes <= 0 {
		result.addError("render.max_bytes", cfg.Render.MaxBytes, "must be positive")
	}
	if cfg.Render.CacheBytes < 0 {
		result.addError("render.cache_bytes", cfg.Render.CacheBytes, "must not be negative")
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		result.addError("log.level", cfg.Log.Level, err.Error(), "Use one of debug, info, warn, error")
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		result.addError("log.format", cfg.Log.Format, "unknown log format", "Use text or json")
	}

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if s.Port < 0 || s.Port > 65535 {
		result.addError("server.port", s.Port, fmt.Sprintf("port %d is not in valid range 0-65535", s.Port),
			"Port 0 lets the system pick a free port")
	} else if s.Port > 0 && s.Port < 1024 {
		result.addWarning("server.port", s.Port, "port below 1024 requires elevated privileges")
	}

	if s.Host == "" {
		result.addError("server.host", s.Host, "host is empty", "Use 127.0.0.1 for local viewing")
		return
	}
	if err := validateHostname(s.Host); err != nil {
		result.addError("server.host", s.Host, err.Error(), "Use 127.0.0.1 for local viewing")
		return
	}
	if ip := net.ParseIP(s.Host); ip != nil && ip.IsUnspecified() {
		result.addWarning("server.host", s.Host, "binding to all interfaces exposes the repository to the network")
	}
}

func validateHostname(host string) error {
	for _, char := range []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/", " "} {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains invalid character %q", char)
		}
	}
	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
