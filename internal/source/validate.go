package source

import "fmt"

// MissingField reports a required response field that was absent or empty.
func MissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}

// InvalidField reports a response field whose value failed validation.
func InvalidField(name string, err error) error {
	return fmt.Errorf("invalid field %q: %w", name, err)
}
