package types

// Policy represents the top-level janitor policy configuration
type Policy struct {
	CleanupTag string                                `yaml:"cleanupTag" validate:"required,tag_key"`
	Resources  map[string]map[string]*ResourceConfig `yaml:"resources" validate:"required,min=1,dive,keys,required,resource_name,endkeys,required,min=1,dive,keys,required,resource_name,endkeys,omitnil"`
}

// ResourceConfig holds per resource type overrides
type ResourceConfig struct {
	CleanupTag string `yaml:"cleanupTag,omitempty" validate:"omitempty,tag_key"`
}

// ResourceDefinition is a resource type to evaluate together with the effective cleanup tag
type ResourceDefinition struct {
	Service      string
	ResourceType string
	CleanupTag   string
}

// Plan is a fully processed policy
type Plan struct {
	CleanupTag  string
	Definitions []*ResourceDefinition
}
