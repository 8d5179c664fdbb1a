// internal/errors/errors.go
package errors

import "fmt"

// ErrUnknownPlatform is returned when a post is created with a platform tag
// outside the recognized set.
type ErrUnknownPlatform struct {
	Platform string
}

func (e *ErrUnknownPlatform) Error() string {
	return fmt.Sprintf("unknown platform: %q", e.Platform)
}
