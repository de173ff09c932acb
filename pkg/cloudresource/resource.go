package cloudresource

// Resource represents a generic cloud resource with tags.
// Implementations are read-only snapshots taken at discovery time.
type Resource interface {
	// ID returns the unique identifier for the resource
	ID() string

	// Kind returns the normalized resource kind
	Kind() Kind

	// Type returns the provider specific resource type
	Type() string

	// Service returns the service name (e.g. EC2, S3, etc.)
	Service() string

	// Provider returns the cloud provider name
	Provider() string

	// Region returns the region where the resource is located
	Region() string

	// OwnerID returns the owner(e.g. account/project/subscription, etc.) ID that owns the resource
	OwnerID() string

	// Tags returns the resource tags
	Tags() map[string]string
}

// StateView is implemented by instance-like resources that expose the
// lifecycle state of the underlying compute resource.
type StateView interface {
	RuntimeState() RuntimeState
}

// RuntimeState is the observed lifecycle phase of a compute resource.
type RuntimeState string

const (
	StatePending      RuntimeState = "pending"
	StateRunning      RuntimeState = "running"
	StateShuttingDown RuntimeState = "shutting-down"
	StateTerminated   RuntimeState = "terminated"
	StateStopping     RuntimeState = "stopping"
	StateStopped      RuntimeState = "stopped"
)

// Tag looks up a single tag on the resource.
func Tag(r Resource, key string) (string, bool) {
	if r == nil {
		return "", false
	}
	tags := r.Tags()
	if tags == nil {
		return "", false
	}
	v, ok := tags[key]
	return v, ok
}
