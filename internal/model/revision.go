package model

import "time"

// Revision orders two copies of the same server record. The server stamps
// Version (mongo's __v style counter) and UpdatedAt; either may be absent on
// older payloads.
type Revision struct {
	Version   uint64
	UpdatedAt time.Time
}

// Compare returns -1, 0 or +1 when r is older, equal or newer than o.
// comparable is false when neither side carries ordering information the
// other can be measured against; callers then fall back to last write wins.
func (r Revision) Compare(o Revision) (cmp int, comparable bool) {
	if r.Version != 0 && o.Version != 0 {
		switch {
		case r.Version > o.Version:
			return 1, true
		case r.Version < o.Version:
			return -1, true
		}
		// same version: a later timestamp still breaks the tie
		if r.UpdatedAt.IsZero() || o.UpdatedAt.IsZero() {
			return 0, true
		}
	}
	if !r.UpdatedAt.IsZero() && !o.UpdatedAt.IsZero() {
		switch {
		case r.UpdatedAt.After(o.UpdatedAt):
			return 1, true
		case r.UpdatedAt.Before(o.UpdatedAt):
			return -1, true
		}
		return 0, true
	}
	return 0, false
}

// Snapshot is a client-held copy of a server entity, keyed by its stable id.
type Snapshot interface {
	Key() string
	Revision() Revision
}
