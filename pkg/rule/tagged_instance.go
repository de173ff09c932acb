package rule

import (
	"errors"
	"fmt"
	"reflect"

	cr "github.com/eliran89c/tag-janitor/pkg/cloudresource"
)

const (
	// DefaultCleanupTag is the tag key resource owners set to opt into cleanup
	DefaultCleanupTag = "cleanup"

	taggedInstanceRuleName  = "TaggedInstanceRule"
	taggedTerminationReason = "Tag(s) associated with this instance"
	cleanupAuthorizedValue  = "true"
)

// ErrInvalidArgument is returned when a rule is called with unusable input.
var ErrInvalidArgument = errors.New("invalid argument")

// TaggedInstanceRule marks running instances whose owner set the cleanup tag
// to "true" as invalid. Every other resource is valid.
type TaggedInstanceRule struct {
	cleanupTag string
	kind       cr.Kind
	observer   Observer
}

// Option configures a TaggedInstanceRule
type Option func(*TaggedInstanceRule)

// WithKind sets the resource kind the rule governs
func WithKind(kind cr.Kind) Option {
	return func(r *TaggedInstanceRule) {
		r.kind = kind
	}
}

// WithObserver sets the sink that receives decision events
func WithObserver(o Observer) Option {
	return func(r *TaggedInstanceRule) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewTaggedInstanceRule creates a rule that reads the given cleanup tag key
func NewTaggedInstanceRule(cleanupTag string, opts ...Option) (*TaggedInstanceRule, error) {
	if cleanupTag == "" {
		return nil, fmt.Errorf("%w: cleanup tag key must not be empty", ErrInvalidArgument)
	}

	r := &TaggedInstanceRule{
		cleanupTag: cleanupTag,
		kind:       cr.KindInstance,
		observer:   nopObserver{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Name returns the rule name
func (r *TaggedInstanceRule) Name() string {
	return taggedInstanceRuleName
}

// CleanupTag returns the tag key the rule reads
func (r *TaggedInstanceRule) CleanupTag() string {
	return r.cleanupTag
}

// TerminationReason describes why a resource flagged by this rule is invalid
func (r *TaggedInstanceRule) TerminationReason() string {
	return taggedTerminationReason
}

// Evaluate returns true when the resource is valid and must be left alone,
// and false when its owner opted it into cleanup.
func (r *TaggedInstanceRule) Evaluate(resource cr.Resource) (bool, error) {
	if isNil(resource) {
		return false, fmt.Errorf("%w: resource is nil", ErrInvalidArgument)
	}

	if resource.Kind() != r.kind {
		return true, nil
	}

	view, ok := resource.(cr.StateView)
	if !ok {
		return true, nil
	}

	// NOTE: the pending clause never changes the outcome; kept as-is until
	// the intended state set is confirmed.
	state := view.RuntimeState()
	if !(state == cr.StateRunning) || state == cr.StatePending {
		return true, nil
	}

	value, exists := cr.Tag(resource, r.cleanupTag)
	if !exists {
		return true, nil
	}

	if value == cleanupAuthorizedValue {
		r.observer.Observe(Event{
			Rule:       taggedInstanceRuleName,
			ResourceID: resource.ID(),
			CleanupTag: r.cleanupTag,
			TagValue:   value,
			Authorized: true,
			Message:    fmt.Sprintf("The instance %s tagged as cleanup handled by Janitor", resource.ID()),
		})
		return false, nil
	}

	r.observer.Observe(Event{
		Rule:       taggedInstanceRuleName,
		ResourceID: resource.ID(),
		CleanupTag: r.cleanupTag,
		TagValue:   value,
		Authorized: false,
		Message:    fmt.Sprintf("The instance %s is not tagged for cleanup handled by Janitor", resource.ID()),
	})
	return true, nil
}

func isNil(resource cr.Resource) bool {
	if resource == nil {
		return true
	}
	v := reflect.ValueOf(resource)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
