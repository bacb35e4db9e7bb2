// Package classifier maps a stream event's matched rule families and geo
// presence to exactly one verdict. Classification is pure: no I/O, no state.
package classifier

import (
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// Verdict is the categorical outcome for one event.
type Verdict int

const (
	// VerdictConfirmed: inside the bounding box and addressed to us.
	VerdictConfirmed Verdict = iota
	// VerdictAskForGeo: addressed from a monitored location but without
	// coordinates; the author should be asked for a geo-tagged repost.
	VerdictAskForGeo
	// VerdictUnconfirmed: inside the bounding box but not addressed to us.
	VerdictUnconfirmed
	// VerdictInvite: a monitored-location mention from an author who has
	// not engaged with us; candidate for a participation invitation.
	VerdictInvite
	// VerdictUnmatched: no rule combination applies. Indicates a mismatch
	// between the provisioned rules and this table.
	VerdictUnmatched
)

func (v Verdict) String() string {
	switch v {
	case VerdictConfirmed:
		return "confirmed"
	case VerdictAskForGeo:
		return "askforgeo"
	case VerdictUnconfirmed:
		return "unconfirmed"
	case VerdictInvite:
		return "invite"
	case VerdictUnmatched:
		return "unmatched"
	default:
		return "unknown"
	}
}

// Facts are the boolean inputs that produced a verdict, kept for logging.
type Facts struct {
	HasGeo        bool
	InBoundingBox bool
	Addressed     bool
	LocationMatch bool
}

// Classify evaluates the verdict table top to bottom and returns the first
// row that matches. Exactly one verdict is returned for every input.
func Classify(ev *domain.StreamEvent) (Verdict, Facts) {
	facts := Facts{
		HasGeo:        ev.HasGeo(),
		InBoundingBox: ev.HasFamily(domain.FamilyBoundingBox),
		Addressed:     ev.HasFamily(domain.FamilyAddressed),
		LocationMatch: ev.HasFamily(domain.FamilyLocationMatch),
	}

	switch {
	case facts.InBoundingBox && facts.Addressed:
		return VerdictConfirmed, facts
	case !facts.InBoundingBox && !facts.HasGeo && facts.Addressed && facts.LocationMatch:
		return VerdictAskForGeo, facts
	case facts.InBoundingBox && !facts.Addressed:
		return VerdictUnconfirmed, facts
	case !facts.InBoundingBox && !facts.HasGeo && !facts.Addressed && facts.LocationMatch:
		return VerdictInvite, facts
	default:
		return VerdictUnmatched, facts
	}
}
