package common

import "fmt"

// Wrap attaches context to err using the standard %w verb. A nil err
// returns nil so callers can write `return common.Wrap(err, "...")` without
// a preceding nil check.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", err)
}
