package database

import (
	"fmt"
	"regexp"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateIdentifier ensures a table or column name is safe to splice into SQL.
// fieldName names the setting in the error.
func ValidateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}
