package features

import (
	"errors"
	"fmt"
)

// MissingColumnError reports a mandatory source column that is absent.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

var ErrDayNotFound = errors.New("no daily record for requested date")
