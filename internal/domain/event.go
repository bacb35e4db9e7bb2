package domain

import (
	"encoding/json"
	"time"
)

// RuleFamily identifies which class of upstream filter rule matched an event.
// The set is closed: rules are registered with their family at provisioning
// time, so downstream code never inspects tag strings.
type RuleFamily int

const (
	// FamilyBoundingBox marks rules that geo-fence the configured region.
	FamilyBoundingBox RuleFamily = iota
	// FamilyAddressed marks rules that match posts directed at the
	// operating account.
	FamilyAddressed
	// FamilyLocationMatch marks rules that match a monitored location by
	// keyword rather than coordinates.
	FamilyLocationMatch
)

func (f RuleFamily) String() string {
	switch f {
	case FamilyBoundingBox:
		return "boundingbox"
	case FamilyAddressed:
		return "addressed"
	case FamilyLocationMatch:
		return "location"
	default:
		return "unknown"
	}
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Longitude float64
	Latitude  float64
}

// Entities carries the structured payloads attached to a post. The records
// are opaque to this service and passed through unmodified.
type Entities struct {
	Hashtags []json.RawMessage
	URLs     []json.RawMessage
	Mentions []json.RawMessage
}

// StreamEvent is one inbound activity record from the firehose. Immutable
// once decoded.
type StreamEvent struct {
	AuthorHandle string
	PostedAt     time.Time
	Text         string
	Language     string
	Geo          *GeoPoint
	Entities     Entities
	MatchedTags  []string
	Families     map[RuleFamily]bool
}

// HasGeo reports whether the event carries coordinates.
func (e *StreamEvent) HasGeo() bool {
	return e.Geo != nil
}

// HasFamily reports whether any matched rule belongs to the given family.
func (e *StreamEvent) HasFamily(f RuleFamily) bool {
	return e.Families[f]
}
