package cli

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidateOutputFormat validates the output format flag
func ValidateOutputFormat(format string) error {
	validFormats := []string{"text", "json", "yaml"}
	for _, valid := range validFormats {
		if format == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s (must be: text, json, or yaml)", format)
}

// ValidateAssetType validates an asset type argument
func ValidateAssetType(t string) error {
	if strings.TrimSpace(t) == "" {
		return fmt.Errorf("asset type cannot be empty")
	}
	return nil
}

// ValidatePattern checks that a search pattern compiles. The service
// evaluates it as a POSIX regular expression, which RE2 covers for the
// patterns artists type.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("search pattern cannot be empty")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid search pattern %q: %w", pattern, err)
	}
	return nil
}

// ValidateProjectID validates the --project flag
func ValidateProjectID(id int) error {
	if id < 0 {
		return fmt.Errorf("invalid project id: %d", id)
	}
	return nil
}
