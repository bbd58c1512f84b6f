// Package resource wraps the backend's goal and transaction endpoints.
// One method per REST call; responses are decoded into explicit envelopes so
// nothing downstream handles untyped JSON.
package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// Doer is the part of apiclient.Client the services need.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out interface{}) error
}

type goalsEnvelope struct {
	Goals []domain.Goal `json:"goals"`
}

type goalEnvelope struct {
	Goal domain.Goal `json:"goal"`
}

// GoalService handles /api/goals.
type GoalService struct {
	client Doer
	log    zerolog.Logger
}

// NewGoalService creates a goal service.
func NewGoalService(client Doer, log zerolog.Logger) *GoalService {
	return &GoalService{client: client, log: log}
}

// Fetch lists goals and reports any failure.
func (s *GoalService) Fetch(ctx context.Context) ([]domain.Goal, error) {
	var env goalsEnvelope
	if err := s.client.Do(ctx, apiclient.Request{Name: "goals.list", Method: http.MethodGet, Path: "/api/goals"}, &env); err != nil {
		return nil, fmt.Errorf("Fetch goals: %w", err)
	}
	if env.Goals == nil {
		return []domain.Goal{}, nil
	}
	return env.Goals, nil
}

// List is the tolerant variant of Fetch: on failure it logs and returns an
// empty slice. An empty result therefore means "unknown", not "no goals".
func (s *GoalService) List(ctx context.Context) []domain.Goal {
	goals, err := s.Fetch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list goals")
		return []domain.Goal{}
	}
	return goals
}

// Create validates in and creates a goal.
func (s *GoalService) Create(ctx context.Context, in domain.GoalInput) (domain.Goal, error) {
	if err := in.Validate(); err != nil {
		return domain.Goal{}, fmt.Errorf("Create goal: %w", err)
	}

	var env goalEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "goals.create", Method: http.MethodPost, Path: "/api/goals", Body: in}, &env)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("Create goal: %w", err)
	}
	return env.Goal, nil
}

// Update applies a partial update.
func (s *GoalService) Update(ctx context.Context, id string, patch domain.GoalPatch) (domain.Goal, error) {
	if id == "" {
		return domain.Goal{}, &domain.ValidationError{Field: "id", Message: "goal id is required"}
	}
	if err := patch.Validate(); err != nil {
		return domain.Goal{}, fmt.Errorf("Update goal %s: %w", id, err)
	}

	var env goalEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "goals.update", Method: http.MethodPut, Path: goalPath(id), Body: patch}, &env)
	if err != nil {
		return domain.Goal{}, fmt.Errorf("Update goal %s: %w", id, err)
	}
	return env.Goal, nil
}

// Delete removes a goal.
func (s *GoalService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "goal id is required"}
	}
	if err := s.client.Do(ctx, apiclient.Request{Name: "goals.delete", Method: http.MethodDelete, Path: goalPath(id)}, nil); err != nil {
		return fmt.Errorf("Delete goal %s: %w", id, err)
	}
	return nil
}

// GeneratePlan asks the backend for an AI-written plan for one goal.
func (s *GoalService) GeneratePlan(ctx context.Context, id string) (domain.GoalPlan, error) {
	if id == "" {
		return domain.GoalPlan{}, &domain.ValidationError{Field: "id", Message: "goal id is required"}
	}

	var plan domain.GoalPlan
	err := s.client.Do(ctx, apiclient.Request{Name: "goals.plan", Method: http.MethodPost, Path: goalPath(id) + "/plan"}, &plan)
	if err != nil {
		return domain.GoalPlan{}, fmt.Errorf("GeneratePlan %s: %w", id, err)
	}
	return plan, nil
}

func goalPath(id string) string {
	return "/api/goals/" + url.PathEscape(id)
}
