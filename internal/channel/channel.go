// Package channel classifies candidate releases into a tracker's configured
// channels. Evaluation order is configuration order and the first enabled
// matching channel wins; a candidate matching no channel is discarded.
package channel

import (
	"log"
	"regexp"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/provider"
)

// Matches reports whether a candidate belongs to a channel: the type filter
// and both patterns must pass. An invalid pattern skips that rule rather
// than failing the whole check.
func Matches(ch models.Channel, cand provider.Candidate) bool {
	switch ch.Type {
	case models.ChannelTypeRelease:
		if cand.Prerelease {
			return false
		}
	case models.ChannelTypePrerelease:
		if !cand.Prerelease {
			return false
		}
	}

	if ch.IncludePattern != "" {
		re, err := regexp.Compile(ch.IncludePattern)
		if err != nil {
			log.Printf("channel: %s: invalid include_pattern %q: %v", ch.Name, ch.IncludePattern, err)
		} else if !re.MatchString(cand.Tag) {
			return false
		}
	}

	if ch.ExcludePattern != "" {
		re, err := regexp.Compile(ch.ExcludePattern)
		if err != nil {
			log.Printf("channel: %s: invalid exclude_pattern %q: %v", ch.Name, ch.ExcludePattern, err)
		} else if re.MatchString(cand.Tag) {
			return false
		}
	}

	return true
}

// Classify returns the first enabled channel the candidate belongs to.
func Classify(channels []models.Channel, cand provider.Candidate) (models.Channel, bool) {
	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		if Matches(ch, cand) {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// Selection is one candidate chosen for recording, stamped with the channel
// it classified into.
type Selection struct {
	Candidate provider.Candidate
	Channel   string
}

// SelectForChannels picks, for each enabled channel in configured order, the
// newest matching candidate. Candidates are assumed newest-first. A tag
// already claimed by an earlier channel is not selected again, so channel
// precedence holds when a candidate satisfies several rules.
func SelectForChannels(channels []models.Channel, candidates []provider.Candidate) []Selection {
	var selections []Selection
	taken := make(map[string]bool)

	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		for _, cand := range candidates {
			if !Matches(ch, cand) {
				continue
			}
			if !taken[cand.Tag] {
				taken[cand.Tag] = true
				selections = append(selections, Selection{Candidate: cand, Channel: ch.Name})
			}
			break
		}
	}
	return selections
}
