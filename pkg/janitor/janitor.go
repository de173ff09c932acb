package janitor

import (
	"context"
	"fmt"
	"sync"

	cr "github.com/eliran89c/tag-janitor/pkg/cloudresource"
	"github.com/eliran89c/tag-janitor/pkg/metrics"
	"github.com/eliran89c/tag-janitor/pkg/policy"
	ptypes "github.com/eliran89c/tag-janitor/pkg/policy/types"
	"github.com/eliran89c/tag-janitor/pkg/rule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Flagged is a resource the rule marked as invalid
type Flagged struct {
	Resource cr.Resource
	Reason   string
}

// Result represents the outcome of evaluating one resource type
type Result struct {
	Definition   *ptypes.ResourceDefinition
	Resources    []cr.Resource
	Flagged      []Flagged
	ValidCount   int
	InvalidCount int
	Error        error
}

// Options configures the behavior of the Janitor
type Options struct {
	ConcurrentWorkers int
	StopOnError       bool
}

// DefaultOptions returns the default Janitor options
func DefaultOptions() *Options {
	return &Options{
		ConcurrentWorkers: 10,
		StopOnError:       false,
	}
}

// Evaluator judges a single resource. true means keep, false means flag for cleanup.
type Evaluator interface {
	Evaluate(resource cr.Resource) (bool, error)
	TerminationReason() string
}

// EvaluatorFactory builds the evaluator for one resource definition. logger
// carries the run id and the definition's service and resource type.
type EvaluatorFactory func(def *ptypes.ResourceDefinition, logger zerolog.Logger) (Evaluator, error)

// Parser defines the interface for parsing janitor policies
type Parser interface {
	ParseFile(path string) (*ptypes.Plan, error)
	ParseBytes(data []byte) (*ptypes.Plan, error)
	ParsePolicy(policy *ptypes.Policy) (*ptypes.Plan, error)
}

// Finder defines the interface for finding cloud resources
type Finder interface {
	FindResources(ctx context.Context, service, resourceType string) ([]cr.Resource, error)
}

// Janitor drives rule evaluation over discovered resources. It only reports
// verdicts and never acts on them.
type Janitor struct {
	Parser         Parser
	Options        *Options
	ResourceFinder Finder
	NewEvaluator   EvaluatorFactory
	Recorder       *metrics.Recorder
	Logger         zerolog.Logger
}

// New creates a new Janitor with the specified resource finder and options
func New(resourceFinder Finder, options *Options) *Janitor {
	if options == nil {
		options = DefaultOptions()
	}

	j := &Janitor{
		Parser:         policy.NewParser(),
		ResourceFinder: resourceFinder,
		Options:        options,
		Logger:         zerolog.Nop(),
	}
	j.NewEvaluator = j.taggedInstanceEvaluator

	return j
}

func (j *Janitor) taggedInstanceEvaluator(def *ptypes.ResourceDefinition, logger zerolog.Logger) (Evaluator, error) {
	r, err := rule.NewTaggedInstanceRule(def.CleanupTag, rule.WithObserver(rule.NewLogObserver(logger)))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RunFromFile loads a policy from a file and runs the janitor
func (j *Janitor) RunFromFile(ctx context.Context, policyPath string) ([]Result, error) {
	plan, err := j.Parser.ParseFile(policyPath)
	if err != nil {
		return nil, fmt.Errorf("error parsing policy file: %w", err)
	}

	return j.Run(ctx, plan)
}

// RunFromBytes loads a policy from a byte slice and runs the janitor
func (j *Janitor) RunFromBytes(ctx context.Context, policyContent []byte) ([]Result, error) {
	plan, err := j.Parser.ParseBytes(policyContent)
	if err != nil {
		return nil, fmt.Errorf("error parsing policy content: %w", err)
	}

	return j.Run(ctx, plan)
}

// RunFromPolicy loads a policy from a Policy object and runs the janitor
func (j *Janitor) RunFromPolicy(ctx context.Context, policy *ptypes.Policy) ([]Result, error) {
	plan, err := j.Parser.ParsePolicy(policy)
	if err != nil {
		return nil, fmt.Errorf("error parsing policy: %w", err)
	}
	return j.Run(ctx, plan)
}

// Run evaluates every definition of the plan. Results keep the plan order.
func (j *Janitor) Run(ctx context.Context, plan *ptypes.Plan) ([]Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}

	workers := j.Options.ConcurrentWorkers
	if workers <= 0 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		stopOnce  sync.Once
		stopErr   error
		slots     = make([]*Result, len(plan.Definitions))
		semaphore = make(chan struct{}, workers)
		logger    = j.Logger.With().Str("run_id", uuid.NewString()).Logger()
	)

	stop := func(err error) {
		stopOnce.Do(func() {
			stopErr = err
			cancel()
		})
	}

	logger.Info().Int("definitions", len(plan.Definitions)).Msg("janitor run started")

dispatch:
	for i, definition := range plan.Definitions {
		if runCtx.Err() != nil {
			break
		}

		select {
		case <-runCtx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}

		if runCtx.Err() != nil {
			<-semaphore
			break
		}

		wg.Add(1)
		go func(i int, def *ptypes.ResourceDefinition) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := j.evaluateDefinition(runCtx, logger, def)
			slots[i] = &result

			if result.Error != nil && j.Options.StopOnError {
				stop(result.Error)
			}
		}(i, definition)
	}

	wg.Wait()

	results := make([]Result, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			results = append(results, *slot)
		}
	}

	if stopErr != nil {
		return results, stopErr
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	logger.Info().Int("results", len(results)).Msg("janitor run finished")
	return results, nil
}

func (j *Janitor) evaluateDefinition(ctx context.Context, logger zerolog.Logger, def *ptypes.ResourceDefinition) Result {
	result := Result{
		Definition: def,
	}

	log := logger.With().Str("service", def.Service).Str("resource_type", def.ResourceType).Logger()

	resources, err := j.ResourceFinder.FindResources(ctx, def.Service, def.ResourceType)
	if err != nil {
		result.Error = fmt.Errorf("error finding resources for %s.%s: %w", def.Service, def.ResourceType, err)
		if j.Recorder != nil {
			j.Recorder.ObserveDiscoveryError(def.Service, def.ResourceType)
		}
		log.Error().Err(err).Msg("resource discovery failed")
		return result
	}

	result.Resources = resources
	if j.Recorder != nil {
		j.Recorder.SetDiscovered(def.Service, def.ResourceType, len(resources))
	}

	evaluator, err := j.NewEvaluator(def, log)
	if err != nil {
		result.Error = fmt.Errorf("error creating rule for %s.%s: %w", def.Service, def.ResourceType, err)
		return result
	}

	for idx, resource := range resources {
		valid, err := evaluator.Evaluate(resource)
		if err != nil {
			result.Error = fmt.Errorf("error evaluating resource #%d of %s.%s: %w", idx, def.Service, def.ResourceType, err)
			if j.Recorder != nil {
				j.Recorder.ObserveRuleError(def.Service, def.ResourceType)
			}
			log.Error().Err(err).Int("index", idx).Msg("rule evaluation failed")
			return result
		}

		if j.Recorder != nil {
			j.Recorder.ObserveVerdict(def.Service, def.ResourceType, valid)
		}

		if valid {
			result.ValidCount++
			continue
		}

		result.InvalidCount++
		result.Flagged = append(result.Flagged, Flagged{
			Resource: resource,
			Reason:   evaluator.TerminationReason(),
		})
	}

	log.Debug().
		Int("resources", len(resources)).
		Int("valid", result.ValidCount).
		Int("invalid", result.InvalidCount).
		Msg("definition evaluated")

	return result
}

// Summary generates a summary report of the janitor results
func (j *Janitor) Summary(results []Result) string {
	var (
		totalResources        int
		totalValid            int
		totalInvalid          int
		definitionsWithErrors int
	)

	for _, result := range results {
		if result.Error != nil {
			definitionsWithErrors++
			continue
		}

		totalResources += len(result.Resources)
		totalValid += result.ValidCount
		totalInvalid += result.InvalidCount
	}

	return fmt.Sprintf(
		"Summary:\n"+
			"  Processed %d resource definitions\n"+
			"  Found %d resources\n"+
			"  Valid: %d resources (%.1f%%)\n"+
			"  Flagged for cleanup: %d resources (%.1f%%)\n"+
			"  Errors: %d resource definitions had errors\n",
		len(results),
		totalResources,
		totalValid,
		percentage(totalValid, totalResources),
		totalInvalid,
		percentage(totalInvalid, totalResources),
		definitionsWithErrors,
	)
}

func percentage(a, b int) float64 {
	if b == 0 {
		return 0.0
	}
	return float64(a) * 100.0 / float64(b)
}
