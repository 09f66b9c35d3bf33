package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBrowserURL checks a URL before it is handed to the platform's
// "open" command, so a crafted host value cannot smuggle shell syntax.
func ValidateBrowserURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if strings.ContainsAny(rawURL, ";&|`$()<>\"'\\\n\r ") {
		return fmt.Errorf("URL contains a shell metacharacter or whitespace")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
