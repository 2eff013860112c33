package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/validation"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// RequestInput is an invitation from one team to another.
type RequestInput struct {
	From model.TeamID    `validate:"required"`
	To   model.TeamID    `validate:"required,nefield=From"`
	Type model.MatchType `validate:"required,oneof=friendly competitive"`
}

// ResponseResult is the outcome of answering a request. Alternatives are only
// filled on rejection and are recommendations for the requester.
type ResponseResult struct {
	Status       model.RequestStatus `json:"status"`
	Alternatives []Recommendation    `json:"alternatives,omitempty"`
}

// SubmitMatchRequest creates a pending match from in.From to in.To. It fails
// with ErrCooldownActive when in.To rejected in.From within the cooldown
// period and with ErrOpenMatchExists when the pair already has an open match.
func (s *Service) SubmitMatchRequest(ctx context.Context, in RequestInput) (id model.MatchID, err error) {
	const op = "service.SubmitMatchRequest"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if err := validation.Struct(op, in); err != nil {
		metrics.RecordMatchRequest("invalid")
		return "", err
	}

	unlock, err := s.lock(ctx, op, teamKey(in.From), teamKey(in.To))
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := s.store.LoadTeam(ctx, in.From); err != nil {
		return "", model.Wrap(op, err)
	}
	if _, err := s.store.LoadTeam(ctx, in.To); err != nil {
		return "", model.Wrap(op, err)
	}

	blocked, err := s.ledger.IsBlocked(ctx, in.To, in.From)
	if err != nil {
		return "", model.Wrap(op, err)
	}
	if blocked {
		metrics.RecordCooldownBlock()
		metrics.RecordMatchRequest("cooldown")
		s.logger.Warn(ctx, "request blocked by cooldown",
			logger.String("from", in.From),
			logger.String("to", in.To),
		)
		return "", model.Wrap(op, model.ErrCooldownActive)
	}

	existing, open, err := s.store.FindOpenMatchBetween(ctx, in.From, in.To)
	if err != nil {
		return "", model.Wrap(op, err)
	}
	if open {
		metrics.RecordMatchRequest("duplicate")
		return "", model.WrapKind(op, model.ErrConflict, fmt.Errorf("%w: %s", model.ErrOpenMatchExists, existing.ID))
	}

	m := &model.Match{
		ID:        uuid.NewString(),
		TeamA:     in.From,
		TeamB:     in.To,
		Type:      in.Type,
		Status:    model.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return "", model.Wrap(op, err)
	}

	metrics.RecordMatchRequest("submitted")
	s.logger.Info(ctx, "match requested",
		logger.String("matchID", m.ID),
		logger.String("from", m.TeamA),
		logger.String("to", m.TeamB),
		logger.String("type", string(m.Type)),
	)
	s.publish(ctx, model.Notification{
		Kind:       model.NotifyRequestReceived,
		MatchID:    m.ID,
		Recipients: []string{m.TeamB},
		Payload:    map[string]any{"from": m.TeamA, "type": string(m.Type)},
	})
	return m.ID, nil
}

// RespondToRequest lets the invited team accept or reject a pending request.
// A rejection starts the cooldown and returns alternatives for the requester.
func (s *Service) RespondToRequest(ctx context.Context, matchID model.MatchID, responder model.TeamID, decision model.Decision) (res ResponseResult, err error) {
	const op = "service.RespondToRequest"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if decision != model.DecisionAccept && decision != model.DecisionReject {
		return ResponseResult{}, model.Invalidf(op, "unknown decision %q", decision)
	}
	m, unlock, err := s.lockMatch(ctx, op, matchID)
	if err != nil {
		return ResponseResult{}, err
	}
	defer unlock()

	if responder != m.TeamB {
		return ResponseResult{}, model.WrapKind(op, model.ErrUnauthorized, fmt.Errorf("team %q is not the invited team", responder))
	}
	if m.Status != model.StatusPending {
		return ResponseResult{}, model.WrapKind(op, model.ErrPreconditionFailed, fmt.Errorf("request is %s", m.RequestStatus()))
	}

	if decision == model.DecisionAccept {
		m.Status = model.StatusConfirmed
		if err := s.store.SaveMatch(ctx, m); err != nil {
			return ResponseResult{}, model.Wrap(op, err)
		}
		s.logger.Info(ctx, "request accepted", logger.String("matchID", m.ID), logger.String("by", responder))
		s.publish(ctx, model.Notification{
			Kind:       model.NotifyRequestAccepted,
			MatchID:    m.ID,
			Recipients: []string{m.TeamA},
			Payload:    map[string]any{"by": responder},
		})
		return ResponseResult{Status: model.RequestAccepted}, nil
	}

	m.Status = model.StatusRejected
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return ResponseResult{}, model.Wrap(op, err)
	}
	if _, err := s.ledger.RecordRejection(ctx, m.TeamB, m.TeamA); err != nil {
		return ResponseResult{}, model.Wrap(op, err)
	}
	metrics.RecordRejection()

	requester, err := s.store.LoadTeam(ctx, m.TeamA)
	if err != nil {
		return ResponseResult{}, model.Wrap(op, err)
	}
	alts, err := s.recommend(ctx, requester, 0, m.TeamB)
	if err != nil {
		return ResponseResult{}, model.Wrap(op, err)
	}

	altIDs := make([]string, len(alts))
	for i, a := range alts {
		altIDs[i] = a.TeamID
	}
	s.logger.Info(ctx, "request rejected",
		logger.String("matchID", m.ID),
		logger.String("by", responder),
		logger.Int("alternatives", len(alts)),
	)
	s.publish(ctx, model.Notification{
		Kind:       model.NotifyRequestRejected,
		MatchID:    m.ID,
		Recipients: []string{m.TeamA},
		Payload:    map[string]any{"by": responder, "alternatives": altIDs},
	})
	return ResponseResult{Status: model.RequestRejected, Alternatives: alts}, nil
}

// lockMatch loads the match, locks both of its teams and reloads it under the
// lock.
func (s *Service) lockMatch(ctx context.Context, op string, id model.MatchID) (*model.Match, func(), error) {
	if id == "" {
		return nil, nil, model.Invalidf(op, "match id is required")
	}
	m, err := s.store.LoadMatch(ctx, id)
	if err != nil {
		return nil, nil, model.Wrap(op, err)
	}
	unlock, err := s.lock(ctx, op, teamKey(m.TeamA), teamKey(m.TeamB))
	if err != nil {
		return nil, nil, err
	}
	m, err = s.store.LoadMatch(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, model.Wrap(op, err)
	}
	return m, unlock, nil
}
