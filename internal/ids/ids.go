package ids

import "github.com/segmentio/ksuid"

// New returns a time-sortable identifier used as primary key for every entity.
func New() string {
	return ksuid.New().String()
}
