package cloudresource

import "strings"

// Kind is the provider independent resource kind used by cleanup rules.
type Kind string

const (
	KindInstance         Kind = "INSTANCE"
	KindVolume           Kind = "EBS_VOLUME"
	KindSnapshot         Kind = "EBS_SNAPSHOT"
	KindImage            Kind = "IMAGE"
	KindAutoScalingGroup Kind = "AUTO_SCALING_GROUP"
	KindLaunchConfig     Kind = "LAUNCH_CONFIG"
	KindSecurityGroup    Kind = "SECURITY_GROUP"
	KindLoadBalancer     Kind = "ELB"
	KindBucket           Kind = "S3_BUCKET"
	KindUnknown          Kind = "UNKNOWN"
)

var kindsByType = map[string]Kind{
	"ec2:instance":                      KindInstance,
	"ec2:volume":                        KindVolume,
	"ec2:snapshot":                      KindSnapshot,
	"ec2:image":                         KindImage,
	"ec2:security-group":                KindSecurityGroup,
	"ec2:securitygroup":                 KindSecurityGroup,
	"autoscaling:autoscalinggroup":      KindAutoScalingGroup,
	"autoscaling:auto-scaling-group":    KindAutoScalingGroup,
	"autoscaling:launchconfiguration":   KindLaunchConfig,
	"elasticloadbalancing:loadbalancer": KindLoadBalancer,
	"s3:bucket":                         KindBucket,
}

// KindFromType maps a provider type string to a Kind. Both the Resource
// Explorer form ("ec2:instance") and the CloudFormation form
// ("AWS::EC2::Instance") are accepted.
func KindFromType(resourceType string) Kind {
	t := strings.ToLower(strings.TrimSpace(resourceType))
	if strings.HasPrefix(t, "aws::") {
		parts := strings.Split(strings.TrimPrefix(t, "aws::"), "::")
		if len(parts) != 2 {
			return KindUnknown
		}
		t = parts[0] + ":" + parts[1]
	}

	if k, ok := kindsByType[t]; ok {
		return k
	}
	return KindUnknown
}
