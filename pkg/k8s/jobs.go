package k8s

import (
	"context"
	"fmt"
	"io"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// KueueQueueLabel is the label key for Kueue queue name
	KueueQueueLabel = "kueue.x-k8s.io/queue-name"
)

// JobManager handles Job, ConfigMap and Pod operations in one namespace.
type JobManager struct {
	client    kubernetes.Interface
	namespace string
}

func NewJobManager(client kubernetes.Interface, namespace string) *JobManager {
	return &JobManager{
		client:    client,
		namespace: namespace,
	}
}

func (jm *JobManager) Namespace() string {
	return jm.namespace
}

func (jm *JobManager) CreateConfigMap(ctx context.Context, cm *corev1.ConfigMap) (*corev1.ConfigMap, error) {
	return jm.client.CoreV1().ConfigMaps(jm.namespace).Create(ctx, cm, metav1.CreateOptions{})
}

func (jm *JobManager) DeleteConfigMap(ctx context.Context, name string) error {
	return jm.client.CoreV1().ConfigMaps(jm.namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (jm *JobManager) CreateJob(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error) {
	return jm.client.BatchV1().Jobs(jm.namespace).Create(ctx, job, metav1.CreateOptions{})
}

func (jm *JobManager) GetJob(ctx context.Context, name string) (*batchv1.Job, error) {
	return jm.client.BatchV1().Jobs(jm.namespace).Get(ctx, name, metav1.GetOptions{})
}

// DeleteJob deletes a Job and, through foreground propagation, its pods.
func (jm *JobManager) DeleteJob(ctx context.Context, name string) error {
	deletePolicy := metav1.DeletePropagationForeground
	return jm.client.BatchV1().Jobs(jm.namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &deletePolicy,
	})
}

// GetJobPods returns all pods for a given job
func (jm *JobManager) GetJobPods(ctx context.Context, jobName string) (*corev1.PodList, error) {
	return jm.client.CoreV1().Pods(jm.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", jobName),
	})
}

// GetPodLogs reads the complete log of a pod's main container.
func (jm *JobManager) GetPodLogs(ctx context.Context, podName string) (string, error) {
	req := jm.client.CoreV1().Pods(jm.namespace).GetLogs(podName, &corev1.PodLogOptions{})
	logs, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("getting pod logs: %w", err)
	}
	defer logs.Close()

	data, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("reading pod logs: %w", err)
	}
	return string(data), nil
}
