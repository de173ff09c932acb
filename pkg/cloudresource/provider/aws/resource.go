package aws

import (
	cr "github.com/eliran89c/tag-janitor/pkg/cloudresource"
)

// AWSResource represents an AWS resource with its metadata
type AWSResource struct {
	ResourceARN    string
	ResourceType   string
	ServiceName    string
	AccountID      string
	ResourceRegion string
	ResourceTags   map[string]string
}

// ID returns the AWS ARN of the resource
func (r *AWSResource) ID() string {
	return r.ResourceARN
}

// Kind returns the resource kind derived from the AWS resource type
func (r *AWSResource) Kind() cr.Kind {
	return cr.KindFromType(r.ResourceType)
}

// Type returns the AWS resource type
func (r *AWSResource) Type() string {
	return r.ResourceType
}

// Service returns the AWS service name
func (r *AWSResource) Service() string {
	return r.ServiceName
}

// Provider returns the cloud provider name as "aws"
func (r *AWSResource) Provider() string {
	return "aws"
}

// Region returns the AWS region where the resource is located
func (r *AWSResource) Region() string {
	return r.ResourceRegion
}

// OwnerID returns the AWS account ID that owns the resource
func (r *AWSResource) OwnerID() string {
	return r.AccountID
}

// Tags returns the resource tags as a map of key-value pairs
func (r *AWSResource) Tags() map[string]string {
	return r.ResourceTags
}

// AWSInstance is an EC2 instance together with its observed state
type AWSInstance struct {
	AWSResource
	InstanceID string
	State      cr.RuntimeState
}

// ID returns the EC2 instance ID
func (i *AWSInstance) ID() string {
	return i.InstanceID
}

// Kind always reports an instance
func (i *AWSInstance) Kind() cr.Kind {
	return cr.KindInstance
}

// RuntimeState returns the instance state as reported by EC2
func (i *AWSInstance) RuntimeState() cr.RuntimeState {
	return i.State
}
