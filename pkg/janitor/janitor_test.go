package janitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	cr "github.com/eliran89c/tag-janitor/pkg/cloudresource"
	"github.com/eliran89c/tag-janitor/pkg/metrics"
	"github.com/eliran89c/tag-janitor/pkg/policy/types"
	"github.com/eliran89c/tag-janitor/pkg/rule"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockResource struct {
	id    string
	kind  cr.Kind
	tags  map[string]string
	state cr.RuntimeState
}

func NewMockInstance(id string, state cr.RuntimeState, tags map[string]string) *MockResource {
	return &MockResource{id: id, kind: cr.KindInstance, tags: tags, state: state}
}

func (m *MockResource) ID() string                    { return m.id }
func (m *MockResource) Kind() cr.Kind                 { return m.kind }
func (m *MockResource) Type() string                  { return "ec2:instance" }
func (m *MockResource) Service() string               { return "ec2" }
func (m *MockResource) Provider() string              { return "aws" }
func (m *MockResource) Region() string                { return "us-west-2" }
func (m *MockResource) OwnerID() string               { return "123456789012" }
func (m *MockResource) Tags() map[string]string       { return m.tags }
func (m *MockResource) RuntimeState() cr.RuntimeState { return m.state }

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindResources(ctx context.Context, service, resourceType string) ([]cr.Resource, error) {
	args := m.Called(ctx, service, resourceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cr.Resource), args.Error(1)
}

type MockParser struct {
	mock.Mock
}

func (m *MockParser) ParseFile(path string) (*types.Plan, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Plan), args.Error(1)
}

func (m *MockParser) ParseBytes(data []byte) (*types.Plan, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Plan), args.Error(1)
}

func (m *MockParser) ParsePolicy(policy *types.Policy) (*types.Plan, error) {
	args := m.Called(policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Plan), args.Error(1)
}

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(resource cr.Resource) (bool, error) {
	args := m.Called(resource)
	return args.Bool(0), args.Error(1)
}

func (m *MockEvaluator) TerminationReason() string {
	return "mock reason"
}

func withEvaluator(e Evaluator) EvaluatorFactory {
	return func(*types.ResourceDefinition, zerolog.Logger) (Evaluator, error) {
		return e, nil
	}
}

func planOf(defs ...*types.ResourceDefinition) *types.Plan {
	return &types.Plan{CleanupTag: "cleanup", Definitions: defs}
}

func instanceDef() *types.ResourceDefinition {
	return &types.ResourceDefinition{Service: "ec2", ResourceType: "instance", CleanupTag: "cleanup"}
}

func TestNew(t *testing.T) {
	mockFinder := new(MockFinder)

	t.Run("With Default Options", func(t *testing.T) {
		j := New(mockFinder, nil)

		assert.NotNil(t, j)
		assert.NotNil(t, j.Parser)
		assert.NotNil(t, j.NewEvaluator)
		assert.Equal(t, mockFinder, j.ResourceFinder)
		assert.Equal(t, 10, j.Options.ConcurrentWorkers)
		assert.False(t, j.Options.StopOnError)
		assert.Nil(t, j.Recorder)
	})

	t.Run("With Custom Options", func(t *testing.T) {
		options := &Options{ConcurrentWorkers: 5, StopOnError: true}

		j := New(mockFinder, options)

		assert.Equal(t, options, j.Options)
	})

	t.Run("Default Evaluator Uses Definition Tag", func(t *testing.T) {
		j := New(mockFinder, nil)

		evaluator, err := j.NewEvaluator(&types.ResourceDefinition{Service: "ec2", ResourceType: "instance", CleanupTag: "janitor"}, zerolog.Nop())
		require.NoError(t, err)

		valid, err := evaluator.Evaluate(NewMockInstance("i-1", cr.StateRunning, map[string]string{"janitor": "true"}))
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Equal(t, "Tag(s) associated with this instance", evaluator.TerminationReason())
	})

	t.Run("Default Evaluator Rejects Empty Tag", func(t *testing.T) {
		j := New(mockFinder, nil)

		evaluator, err := j.NewEvaluator(&types.ResourceDefinition{Service: "ec2", ResourceType: "instance"}, zerolog.Nop())
		assert.ErrorIs(t, err, rule.ErrInvalidArgument)
		assert.Nil(t, evaluator)
	})
}

func TestDefaultOptions(t *testing.T) {
	options := DefaultOptions()

	assert.Equal(t, 10, options.ConcurrentWorkers)
	assert.False(t, options.StopOnError)
}

func TestRunFromFile(t *testing.T) {
	ctx := context.Background()
	mockParser := new(MockParser)
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)
	j.Parser = mockParser

	def := instanceDef()
	flagged := NewMockInstance("i-1", cr.StateRunning, map[string]string{"cleanup": "true"})
	kept := NewMockInstance("i-2", cr.StateRunning, map[string]string{"cleanup": "false"})
	stopped := NewMockInstance("i-3", cr.StateStopped, map[string]string{"cleanup": "true"})
	resources := []cr.Resource{flagged, kept, stopped}

	mockParser.On("ParseFile", "test-policy.yaml").Return(planOf(def), nil)
	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return(resources, nil)

	results, err := j.RunFromFile(ctx, "test-policy.yaml")

	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, def, result.Definition)
	assert.Equal(t, resources, result.Resources)
	assert.Equal(t, 2, result.ValidCount)
	assert.Equal(t, 1, result.InvalidCount)
	require.Len(t, result.Flagged, 1)
	assert.Equal(t, "i-1", result.Flagged[0].Resource.ID())
	assert.Equal(t, "Tag(s) associated with this instance", result.Flagged[0].Reason)
	assert.Nil(t, result.Error)

	mockParser.AssertExpectations(t)
	mockFinder.AssertExpectations(t)
}

func TestRunFromBytes(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)

	volume := &MockResource{id: "vol-1", kind: cr.KindVolume, tags: map[string]string{"cleanup": "true"}}
	mockFinder.On("FindResources", mock.Anything, "ec2", "volume").Return([]cr.Resource{volume}, nil)

	policy := []byte(`
cleanupTag: cleanup
resources:
  ec2:
    volume: {}
`)

	results, err := j.RunFromBytes(ctx, policy)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ValidCount)
	assert.Equal(t, 0, results[0].InvalidCount)
	assert.Empty(t, results[0].Flagged)

	mockFinder.AssertExpectations(t)
}

func TestRunFromBytesInvalidPolicy(t *testing.T) {
	j := New(new(MockFinder), nil)

	results, err := j.RunFromBytes(context.Background(), []byte("resources: {}"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing policy content")
	assert.Nil(t, results)
}

func TestRunFromPolicy(t *testing.T) {
	ctx := context.Background()
	mockParser := new(MockParser)
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)
	j.Parser = mockParser

	policy := &types.Policy{CleanupTag: "cleanup"}
	parseErr := errors.New("bad policy")
	mockParser.On("ParsePolicy", policy).Return(nil, parseErr)

	results, err := j.RunFromPolicy(ctx, policy)

	assert.ErrorIs(t, err, parseErr)
	assert.Nil(t, results)
	mockFinder.AssertNotCalled(t, "FindResources", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunWithMockEvaluator(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)
	mockEvaluator := new(MockEvaluator)

	j := New(mockFinder, nil)
	j.NewEvaluator = withEvaluator(mockEvaluator)

	res1 := NewMockInstance("i-1", cr.StateRunning, nil)
	res2 := NewMockInstance("i-2", cr.StateRunning, nil)

	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return([]cr.Resource{res1, res2}, nil)
	mockEvaluator.On("Evaluate", res1).Return(false, nil)
	mockEvaluator.On("Evaluate", res2).Return(true, nil)

	results, err := j.Run(ctx, planOf(instanceDef()))

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ValidCount)
	assert.Equal(t, 1, results[0].InvalidCount)
	require.Len(t, results[0].Flagged, 1)
	assert.Equal(t, "mock reason", results[0].Flagged[0].Reason)

	mockEvaluator.AssertExpectations(t)
}

func TestRunWithEvaluationError(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)
	j.Recorder = metrics.NewRecorder()

	// a nil resource from discovery is a pipeline bug and must surface as an error
	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return([]cr.Resource{nil}, nil)

	results, err := j.Run(ctx, planOf(instanceDef()))

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, rule.ErrInvalidArgument)
	assert.Equal(t, 0, results[0].ValidCount)
	assert.Equal(t, 0, results[0].InvalidCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(j.Recorder.RuleErrors.WithLabelValues("ec2", "instance")))
}

func TestRunWithFindResourcesError(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)
	j.Recorder = metrics.NewRecorder()

	expectedErr := errors.New("resource finder error")
	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return(nil, expectedErr)

	results, err := j.Run(ctx, planOf(instanceDef()))

	assert.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Nil(t, result.Resources)
	assert.ErrorIs(t, result.Error, expectedErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(j.Recorder.DiscoveryErrors.WithLabelValues("ec2", "instance")))

	mockFinder.AssertExpectations(t)
}

func TestRunStopOnError(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	j := New(mockFinder, &Options{ConcurrentWorkers: 1, StopOnError: true})

	first := &types.ResourceDefinition{Service: "ec2", ResourceType: "instance", CleanupTag: "cleanup"}
	second := &types.ResourceDefinition{Service: "ec2", ResourceType: "volume", CleanupTag: "cleanup"}

	expectedErr := errors.New("boom")
	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return(nil, expectedErr)

	results, err := j.Run(ctx, planOf(first, second))

	assert.ErrorIs(t, err, expectedErr)
	require.Len(t, results, 1)
	assert.Equal(t, first, results[0].Definition)
	mockFinder.AssertNotCalled(t, "FindResources", mock.Anything, "ec2", "volume")
}

func TestRunKeepsPlanOrder(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	j := New(mockFinder, &Options{ConcurrentWorkers: 4})

	defs := []*types.ResourceDefinition{
		{Service: "ec2", ResourceType: "image", CleanupTag: "cleanup"},
		{Service: "ec2", ResourceType: "instance", CleanupTag: "cleanup"},
		{Service: "ec2", ResourceType: "snapshot", CleanupTag: "cleanup"},
		{Service: "s3", ResourceType: "bucket", CleanupTag: "cleanup"},
	}
	for _, def := range defs {
		mockFinder.On("FindResources", mock.Anything, def.Service, def.ResourceType).Return([]cr.Resource{}, nil)
	}

	results, err := j.Run(ctx, planOf(defs...))

	require.NoError(t, err)
	require.Len(t, results, len(defs))
	for i, def := range defs {
		assert.Equal(t, def, results[i].Definition)
	}
}

func TestRunWithContextCancelled(t *testing.T) {
	mockFinder := new(MockFinder)

	j := New(mockFinder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := j.Run(ctx, planOf(instanceDef()))

	assert.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, results)
	mockFinder.AssertNotCalled(t, "FindResources", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunNilPlan(t *testing.T) {
	j := New(new(MockFinder), nil)

	results, err := j.Run(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, results)
}

func TestRunRecordsMetricsAndLogs(t *testing.T) {
	ctx := context.Background()
	mockFinder := new(MockFinder)

	var buf bytes.Buffer
	j := New(mockFinder, nil)
	j.Recorder = metrics.NewRecorder()
	j.Logger = zerolog.New(&buf)

	resources := []cr.Resource{
		NewMockInstance("i-1", cr.StateRunning, map[string]string{"cleanup": "true"}),
		NewMockInstance("i-2", cr.StateRunning, map[string]string{}),
	}
	mockFinder.On("FindResources", mock.Anything, "ec2", "instance").Return(resources, nil)

	_, err := j.Run(ctx, planOf(instanceDef()))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(j.Recorder.Verdicts.WithLabelValues("ec2", "instance", metrics.VerdictInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(j.Recorder.Verdicts.WithLabelValues("ec2", "instance", metrics.VerdictValid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(j.Recorder.ResourcesDiscovered.WithLabelValues("ec2", "instance")))

	out := buf.String()
	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, "The instance i-1 tagged as cleanup handled by Janitor")

	var decision map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, "The instance i-1 tagged as cleanup") {
			require.NoError(t, json.Unmarshal([]byte(line), &decision))
		}
	}
	require.NotNil(t, decision)
	assert.NotEmpty(t, decision["run_id"])
	assert.Equal(t, "ec2", decision["service"])
	assert.Equal(t, "instance", decision["resource_type"])
	assert.Equal(t, "i-1", decision["resource_id"])
}

func TestSummary(t *testing.T) {
	j := New(nil, nil)

	validResult := Result{
		Definition:   &types.ResourceDefinition{Service: "ec2", ResourceType: "volume"},
		Resources:    make([]cr.Resource, 5),
		ValidCount:   5,
		InvalidCount: 0,
	}

	flaggedResult := Result{
		Definition:   &types.ResourceDefinition{Service: "ec2", ResourceType: "instance"},
		Resources:    make([]cr.Resource, 3),
		ValidCount:   1,
		InvalidCount: 2,
	}

	errorResult := Result{
		Definition: &types.ResourceDefinition{Service: "rds", ResourceType: "instance"},
		Error:      errors.New("test error"),
	}

	summary := j.Summary([]Result{validResult, flaggedResult, errorResult})

	assert.Contains(t, summary, "Processed 3 resource definitions")
	assert.Contains(t, summary, "Found 8 resources")
	assert.Contains(t, summary, "Valid: 6 resources (75.0%)")
	assert.Contains(t, summary, "Flagged for cleanup: 2 resources (25.0%)")
	assert.Contains(t, summary, "Errors: 1 resource definitions had errors")
}

func TestSummaryEmpty(t *testing.T) {
	j := New(nil, nil)

	summary := j.Summary(nil)

	assert.Contains(t, summary, "Processed 0 resource definitions")
	assert.Contains(t, summary, "Valid: 0 resources (0.0%)")
}
