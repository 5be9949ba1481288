package service

import (
	"context"
	"encoding/json"
	"time"

	"devlog/internal/platform/logger"
	jobsdom "devlog/internal/services/jobs/domain"
	sessdom "devlog/internal/services/sessions/domain"
)

// jobPayload is the wire shape the sessions service enqueues
type jobPayload struct {
	SessionID      string `json:"session_id"`
	ContentVersion string `json:"content_version"`
	WindowDays     int    `json:"window_days,omitempty"`
}

// RegisterHandlers attaches the enrichment stages to the worker
func (s *Svc) RegisterHandlers(reg jobsdom.RegistryPort) {
	reg.Register(jobsdom.KindNarrative, s.HandleNarrative)
	reg.Register(jobsdom.KindEmbedding, s.HandleEmbedding)
	reg.Register(jobsdom.KindWeeklySummary, s.HandleWeekly)
	reg.RegisterTerminal(jobsdom.KindNarrative, s.NarrativeTerminal)
}

// HandleNarrative generates the narrative for the job's session
// a vanished session completes the job; the trigger has been superseded
func (s *Svc) HandleNarrative(ctx context.Context, job jobsdom.Job) error {
	var p jobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}
	row, err := s.Repo.SessionContext(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	if p.ContentVersion != "" && row.ContentVersion != p.ContentVersion {
		// the session changed since enqueue; a newer job carries the work
		return nil
	}
	if p.ContentVersion != "" && row.NarrativeStatus == sessdom.NarrativeReady {
		// the on-demand path already generated for this content version
		return nil
	}
	if err := s.Repo.SetNarrativeStatus(ctx, p.SessionID, sessdom.NarrativePending); err != nil {
		return err
	}
	_, err = s.generateNarrative(ctx, p.SessionID)
	return err
}

// HandleEmbedding embeds and indexes the job's session
func (s *Svc) HandleEmbedding(ctx context.Context, job jobsdom.Job) error {
	var p jobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}
	row, err := s.Repo.SessionContext(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	if p.ContentVersion != "" && row.ContentVersion != p.ContentVersion {
		return nil
	}
	return s.embedSession(ctx, p.SessionID)
}

// HandleWeekly recomputes summaries for every owner active in the
// trailing week
func (s *Svc) HandleWeekly(ctx context.Context, _ jobsdom.Job) error {
	owners, err := s.Repo.OwnersWithSessionsSince(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	if err != nil {
		return err
	}
	log := logger.C(ctx)
	for _, owner := range owners {
		if _, err := s.WeeklySummary(ctx, owner); err != nil {
			log.Warn().Err(err).Int64("owner_id", owner).Msg("weekly summary failed")
		}
	}
	return nil
}

// NarrativeTerminal marks the session's narrative unavailable once the
// retry budget is spent
func (s *Svc) NarrativeTerminal(ctx context.Context, job jobsdom.Job, lastErr error) {
	var p jobPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return
	}
	log := logger.C(ctx)
	if err := s.Repo.SetNarrativeStatus(ctx, p.SessionID, sessdom.NarrativeUnavailable); err != nil {
		log.Error().Err(err).Str("session_id", p.SessionID).Msg("mark narrative unavailable failed")
		return
	}
	log.Warn().
		Err(lastErr).
		Str("session_id", p.SessionID).
		Msg("narrative generation exhausted retries")
}
