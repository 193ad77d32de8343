package qrunner

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ContainerConfig is the pod-level setup of container-based backends.
type ContainerConfig struct {
	// Image must provide sh, tar and the job runtime (python + pip).
	Image string

	// Resources defines CPU and memory constraints
	Resources ResourceRequirements

	// QueueName, when set, hands the Job to Kueue: it is created suspended and
	// labelled with the queue.
	QueueName string
}

// ResourceRequirements uses Kubernetes quantity strings ("100m", "1Gi").
// Empty fields are omitted from the pod spec.
type ResourceRequirements struct {
	CPURequest    string
	MemoryRequest string
	CPULimit      string
	MemoryLimit   string
}

// DefaultContainerConfig returns sensible defaults for container configuration
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		Image: "python:3.12-slim",
		Resources: ResourceRequirements{
			CPURequest:    "100m",
			MemoryRequest: "128Mi",
			CPULimit:      "1",
			MemoryLimit:   "512Mi",
		},
	}
}

func (r ResourceRequirements) toK8s() (corev1.ResourceRequirements, error) {
	out := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	set := []struct {
		list  corev1.ResourceList
		name  corev1.ResourceName
		value string
	}{
		{out.Requests, corev1.ResourceCPU, r.CPURequest},
		{out.Requests, corev1.ResourceMemory, r.MemoryRequest},
		{out.Limits, corev1.ResourceCPU, r.CPULimit},
		{out.Limits, corev1.ResourceMemory, r.MemoryLimit},
	}
	for _, s := range set {
		if s.value == "" {
			continue
		}
		q, err := resource.ParseQuantity(s.value)
		if err != nil {
			return out, fmt.Errorf("invalid quantity %q for %s: %w", s.value, s.name, err)
		}
		s.list[s.name] = q
	}
	return out, nil
}
