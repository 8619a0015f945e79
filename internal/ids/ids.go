package ids

import "github.com/segmentio/ksuid"

// New returns a sortable, URL-safe unique id for sessions and object keys.
func New() string {
	return ksuid.New().String()
}
