package session

import (
	"fmt"
	"regexp"
)

var idRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateClientID checks that id is usable as a directory name.
func ValidateClientID(id string) error {
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid client id %q: must match ^[a-z0-9_-]{1,64}$", id)
	}
	return nil
}
