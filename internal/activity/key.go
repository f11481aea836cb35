package activity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadKey rejects a malformed activity key.
var ErrBadKey = errors.New("invalid activity key")

// Key returns the activity key for a group's transition: "<group>.true" or
// "<group>.false".
func Key(groupID string, state bool) string {
	if state {
		return groupID + ".true"
	}
	return groupID + ".false"
}

// ParseKey splits an activity key into its group id and transition.
func ParseKey(key string) (groupID string, state bool, err error) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 {
		return "", false, fmt.Errorf("%w %q", ErrBadKey, key)
	}
	switch key[i+1:] {
	case "true":
		return key[:i], true, nil
	case "false":
		return key[:i], false, nil
	}
	return "", false, fmt.Errorf("%w %q", ErrBadKey, key)
}
