package ids

import "github.com/segmentio/ksuid"

// New returns a sortable unique id. KSUIDs embed a timestamp, so gallery
// rows created in order also sort in order.
func New() string {
	return ksuid.New().String()
}
