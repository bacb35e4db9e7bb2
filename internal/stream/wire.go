package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// wireActivity is one activity message as the provider sends it. Entity
// records are kept raw and passed through unmodified.
type wireActivity struct {
	Actor struct {
		PreferredUsername string `json:"preferredUsername"`
	} `json:"actor"`
	PostedTime time.Time `json:"postedTime"`
	Body       string    `json:"body"`
	Language   string    `json:"language"`
	Geo        *struct {
		// Coordinates are [longitude, latitude].
		Coordinates []float64 `json:"coordinates"`
	} `json:"geo"`
	Entities struct {
		Hashtags []json.RawMessage `json:"hashtags"`
		URLs     []json.RawMessage `json:"urls"`
		Mentions []json.RawMessage `json:"user_mentions"`
	} `json:"entities"`
	MatchingRules []struct {
		Tag string `json:"tag"`
	} `json:"matching_rules"`
}

// isKeepAlive reports whether the frame is a provider keep-alive (an empty or
// whitespace-only message).
func isKeepAlive(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

// decodeActivity unmarshals one wire message into a StreamEvent, resolving
// each matched tag to its rule family via the provisioned rule set. Tags the
// rule set does not know are kept in MatchedTags but contribute no family.
func decodeActivity(data []byte, rules *RuleSet) (*domain.StreamEvent, error) {
	var activity wireActivity
	if err := json.Unmarshal(data, &activity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
	}

	if activity.Actor.PreferredUsername == "" {
		return nil, fmt.Errorf("activity has no author handle")
	}

	ev := &domain.StreamEvent{
		AuthorHandle: activity.Actor.PreferredUsername,
		PostedAt:     activity.PostedTime,
		Text:         activity.Body,
		Language:     activity.Language,
		Entities: domain.Entities{
			Hashtags: activity.Entities.Hashtags,
			URLs:     activity.Entities.URLs,
			Mentions: activity.Entities.Mentions,
		},
		Families: make(map[domain.RuleFamily]bool),
	}

	if activity.Geo != nil && len(activity.Geo.Coordinates) == 2 {
		ev.Geo = &domain.GeoPoint{
			Longitude: activity.Geo.Coordinates[0],
			Latitude:  activity.Geo.Coordinates[1],
		}
	}

	for _, matched := range activity.MatchingRules {
		ev.MatchedTags = append(ev.MatchedTags, matched.Tag)
		if family, ok := rules.FamilyFor(matched.Tag); ok {
			ev.Families[family] = true
		}
	}

	return ev, nil
}
