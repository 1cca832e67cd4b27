package mchms

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/mchms/internal/domain/metadata"
	"github.com/ehr/mchms/internal/platform/metrics"
)

// Service evaluates the "tested for HIV in MCH-MS" calculation for a cohort.
type Service struct {
	resolver   metadata.Resolver
	aggregator *Aggregator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(resolver metadata.Resolver, aggregator *Aggregator, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		resolver:   resolver,
		aggregator: aggregator,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate returns one Qualification per distinct cohort member, in input
// order. Patients outside the eligible set are reported as not qualified.
// A missing enrollment or test date on an eligible patient fails the call.
func (s *Service) Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	start := time.Now()
	stage := req.Stage.String()

	eval, err := s.evaluate(ctx, req)
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	if err != nil {
		s.metrics.IncrementEvaluation(stage, "error")
		s.logger.Error().Err(err).
			Str("stage", stage).
			Int("cohort_size", len(req.Cohort)).
			Msg("evaluation failed")
		return nil, err
	}

	s.metrics.IncrementEvaluation(stage, "ok")
	s.metrics.AddPatients(stage, "qualified", eval.Summary.Qualified)
	s.metrics.AddPatients(stage, "not_qualified", eval.Summary.Eligible-eval.Summary.Qualified)
	s.metrics.AddPatients(stage, "ineligible", eval.Summary.CohortSize-eval.Summary.Eligible)
	s.logger.Info().
		Str("calculation", CalculationName).
		Str("stage", stage).
		Str("result", string(req.Result)).
		Time("as_of", eval.AsOf).
		Int("cohort_size", eval.Summary.CohortSize).
		Int("eligible", eval.Summary.Eligible).
		Int("qualified", eval.Summary.Qualified).
		Dur("duration", time.Since(start)).
		Msg("evaluation complete")
	return eval, nil
}

func (s *Service) evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	if !validStages[req.Stage] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, req.Stage)
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	cohort := uniqueCohort(req.Cohort)

	dict, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata: %w", err)
	}

	facts, err := s.aggregator.Collect(ctx, cohort, asOf, dict)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Calculation: CalculationName,
		Stage:       req.Stage.String(),
		Result:      string(req.Result),
		AsOf:        asOf,
		Results:     make([]Qualification, 0, len(cohort)),
		Summary:     Summary{CohortSize: len(cohort)},
	}
	for _, id := range cohort {
		qualified := false
		if facts.Eligible[id] {
			eval.Summary.Eligible++
			f := facts.Facts[id]
			inStage, err := Classify(req.Stage, f.EnrollmentDate, f.LastTestDate, f.LastDeliveryDate)
			if err != nil {
				return nil, fmt.Errorf("classify patient %s: %w", id, err)
			}
			qualified = inStage && MatchesResult(req.Result, f.LastStatus)
		}
		if qualified {
			eval.Summary.Qualified++
		}
		eval.Results = append(eval.Results, Qualification{PatientID: id, Qualified: qualified})
	}
	return eval, nil
}
