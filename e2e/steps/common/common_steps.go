package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context the generic steps need.
type TestContext interface {
	Status() int
	Field(name string) (any, error)
}

// RegisterSteps registers response assertions shared by every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the request should fail with "([^"]*)"$`, steps.requestShouldFailWith)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) responseStatusShouldBe(_ context.Context, status int) error {
	if got := s.tc.Status(); got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(_ context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) requestShouldFailWith(ctx context.Context, code string) error {
	if s.tc.Status() < 400 {
		return fmt.Errorf("expected a failure, got status %d", s.tc.Status())
	}
	return s.responseFieldShouldBe(ctx, "error", code)
}
