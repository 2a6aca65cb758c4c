package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/signalbox/internal/channel"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/provider"
	"github.com/zulandar/signalbox/internal/secrets"
	"github.com/zulandar/signalbox/internal/store"
)

// check runs one full cycle for a tracker: resolve credential, fetch,
// classify, record, notify, and write the status row. Provider and store
// failures abort the remainder of the cycle and land in the status error;
// they never propagate out.
//
// The cycle is detached from the caller's cancellation so a check in flight
// when its tracker is disabled or the scheduler shuts down still completes
// and leaves the store consistent. The per-check timeout still applies.
func (s *Scheduler) check(ctx context.Context, name string, limit int) models.TrackerStatus {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	now := time.Now()
	status := models.TrackerStatus{Name: name, LastCheck: &now}

	tracker, err := s.store.GetTracker(name)
	if err != nil {
		return s.fail(status, fmt.Errorf("load tracker: %w", err))
	}
	status.Type = tracker.Type
	status.Enabled = tracker.Enabled

	// A failing check keeps the last-known-good version visible.
	if prev, err := s.store.GetStatus(name); err == nil {
		status.LastVersion = prev.LastVersion
	}

	token := ""
	if tracker.CredentialName != "" {
		token, err = s.resolve(ctx, tracker.CredentialName)
		if errors.Is(err, secrets.ErrNotFound) {
			log.Printf("scheduler: %s: credential %q not found, checking anonymously", name, tracker.CredentialName)
			token = ""
		} else if err != nil {
			return s.fail(status, fmt.Errorf("resolve credential %q: %w", tracker.CredentialName, err))
		}
	}

	prov, err := s.providers(tracker, token)
	if err != nil {
		return s.fail(status, err)
	}

	candidates, err := prov.Fetch(ctx, limit)
	if err != nil {
		return s.fail(status, err)
	}

	channels, err := models.ParseChannels(tracker.Channels)
	if err != nil {
		return s.fail(status, err)
	}

	// A tracker with zero enabled channels matches nothing: still polled,
	// but it produces no events.
	selections := channel.SelectForChannels(channels, candidates)

	var newest *models.Release
	for _, sel := range selections {
		cand := sel.Candidate
		if cand.CommitSHA == "" {
			// Resolved lazily, only for candidates worth recording.
			if resolver, ok := prov.(provider.CommitResolver); ok {
				sha, err := resolver.ResolveCommit(ctx, cand.Tag)
				if err != nil {
					log.Printf("scheduler: %s: %v", name, err)
				} else {
					cand.CommitSHA = sha
				}
			}
		}

		rel := releaseFromCandidate(tracker, cand, sel.Channel)
		outcome, err := s.store.Record(&rel, tracker.RepublishOnBody)
		if err != nil {
			return s.fail(status, err)
		}

		switch outcome {
		case store.OutcomeCreated:
			log.Printf("scheduler: %s: new release %s (%s)", name, rel.TagName, sel.Channel)
			s.dispatcher.Dispatch(ctx, notify.Event{Kind: notify.EventNewRelease, Release: rel})
		case store.OutcomeRepublished:
			log.Printf("scheduler: %s: republish of %s (count %d)", name, rel.TagName, rel.RepublishCount)
			s.dispatcher.Dispatch(ctx, notify.Event{Kind: notify.EventRepublish, Release: rel})
		}

		if newest == nil || rel.PublishedAt.After(newest.PublishedAt) {
			r := rel
			newest = &r
		}
	}

	if newest != nil {
		status.LastVersion = newest.TagName
	}
	status.Error = ""
	if err := s.store.UpsertStatus(status); err != nil {
		log.Printf("scheduler: %s: %v", name, err)
	}
	return status
}

// fail records a check failure on the status row.
func (s *Scheduler) fail(status models.TrackerStatus, err error) models.TrackerStatus {
	status.Error = err.Error()
	log.Printf("scheduler: %s: check failed: %v", status.Name, err)
	if uerr := s.store.UpsertStatus(status); uerr != nil {
		log.Printf("scheduler: %s: %v", status.Name, uerr)
	}
	return status
}

// releaseFromCandidate shapes a classified candidate as a release row.
func releaseFromCandidate(tracker models.Tracker, cand provider.Candidate, channelName string) models.Release {
	return models.Release{
		TrackerName: tracker.Name,
		TagName:     cand.Tag,
		Name:        cand.Name,
		Version:     cand.Version(),
		PublishedAt: cand.PublishedAt,
		URL:         cand.URL,
		Prerelease:  cand.Prerelease,
		Body:        cand.Body,
		ChannelName: channelName,
		CommitSHA:   cand.CommitSHA,
	}
}
