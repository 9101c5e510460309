// Package session models the upload-to-report lifecycle. A Session owns the
// unified profiles, scored results, linkage conflicts, and the audit
// recorder for one analysis cycle; the core components themselves hold no
// global state. The enclosing application creates a session, threads it
// through the pipeline, and tears it down on reset.
package session

import (
	"time"

	"github.com/charted-solutions/loanrisk/internal/audit"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/google/uuid"
)

// Session is the state for one analysis cycle. Profiles and scored results
// are value collections replaced wholesale by pipeline stages, never
// mutated in place.
type Session struct {
	ID        string
	CreatedAt time.Time

	Profiles  []model.UnifiedProfile
	Conflicts []model.LinkageConflict
	Scored    []model.ScoredProfile

	Recorder *audit.Recorder
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Recorder:  audit.NewRecorder(),
	}
}

// SetLinkResult replaces the session's profile collection with a fresh
// linkage run, invalidating any previous scoring.
func (s *Session) SetLinkResult(result model.LinkResult) {
	s.Profiles = result.Profiles
	s.Conflicts = result.Conflicts
	s.Scored = nil
}

// SetScored replaces the session's scored collection.
func (s *Session) SetScored(scored []model.ScoredProfile) {
	s.Scored = scored
}

// ScoredAtLeast returns the scored profiles at or above the given tier.
func (s *Session) ScoredAtLeast(tier model.RiskTier) []model.ScoredProfile {
	var out []model.ScoredProfile
	for _, sp := range s.Scored {
		if sp.Tier.AtLeast(tier) {
			out = append(out, sp)
		}
	}
	return out
}

// UnscoredCount returns the number of profiles that carry no delinquency
// data and therefore cannot be scored.
func (s *Session) UnscoredCount() int {
	n := 0
	for _, p := range s.Profiles {
		if !p.HasDelinquency {
			n++
		}
	}
	return n
}
