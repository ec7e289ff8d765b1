package memory

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrNotFound is returned when a memory or identity link does not exist
var ErrNotFound = errors.New("memory not found")

// Record is one stored utterance. (OwnerID, StoredAt) is unique.
type Record struct {
	OwnerID      string `json:"userId" yaml:"userId"`
	DeviceID     string `json:"deviceId" yaml:"deviceId"`
	StoredAt     int64  `json:"whenStored" yaml:"whenStored"`
	Text         string `json:"text" yaml:"text"`
	LanguageTag  string `json:"canTypeId,omitempty" yaml:"canTypeId,omitempty"`
	Timezone     string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	StoreCountry string `json:"storeCountry,omitempty" yaml:"storeCountry,omitempty"`
}

// Key returns the value that identifies the record within its owner's set
func (r Record) Key() int64 {
	return r.StoredAt
}

// Match is a record decorated with the number of distinct query words it matched.
// Matches are built fresh for every recall and never share state with the source record.
type Match struct {
	Record `yaml:",inline"`
	Score  int `json:"score" yaml:"score"`
}

// HowLongAgo describes when a memory was stored relative to now, e.g. "3 minutes ago"
func HowLongAgo(storedAt int64, now time.Time) string {
	if storedAt <= 0 {
		return "earlier"
	}
	return humanize.RelTime(time.UnixMilli(storedAt), now, "ago", "from now")
}
