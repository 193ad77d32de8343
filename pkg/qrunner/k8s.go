package qrunner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/k8s"
	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qlog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

const (
	jobLabel      = "qgate.job"
	bundleKey     = "workdir.tar"
	bundleMount   = "/bundle"
	workspacePath = "/workspace"
)

// K8sRunner executes jobs as Kubernetes Jobs. The working directory travels in
// a ConfigMap owned by the Job, so deleting the Job cleans both up.
type K8sRunner struct {
	jobManager *k8s.JobManager
	config     ContainerConfig
	logger     *qlog.Logger
}

// NewK8sRunner creates a runner for one namespace.
func NewK8sRunner(client kubernetes.Interface, namespace string, config ContainerConfig, logger *qlog.Logger) *K8sRunner {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	if config.Image == "" {
		config.Image = DefaultContainerConfig().Image
	}
	return &K8sRunner{
		jobManager: k8s.NewJobManager(client, namespace),
		config:     config,
		logger:     logger,
	}
}

// Submit creates the Job and its bundle ConfigMap. The Job name is the remote id.
func (r *K8sRunner) Submit(ctx context.Context, spec JobSpec) (string, error) {
	var bundle bytes.Buffer
	if spec.WorkingDir != "" {
		if err := qart.PackTar(spec.WorkingDir, &bundle); err != nil {
			return "", err
		}
	} else if err := tar.NewWriter(&bundle).Close(); err != nil {
		return "", err
	}

	resources, err := r.config.Resources.toK8s()
	if err != nil {
		return "", err
	}

	jobName := "qgate-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	labels := map[string]string{jobLabel: jobName}
	if r.config.QueueName != "" {
		labels[k8s.KueueQueueLabel] = r.config.QueueName
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        jobName,
			Labels:      labels,
			Annotations: spec.Metadata,
		},
		Spec: batchv1.JobSpec{
			Parallelism:  ptr.To(int32(1)),
			Completions:  ptr.To(int32(1)),
			Suspend:      ptr.To(r.config.QueueName != ""),
			BackoffLimit: ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{jobLabel: jobName}},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:       "main",
							Image:      r.config.Image,
							Command:    []string{"sh", "-c", buildScript(spec)},
							Env:        envMapToEnvVars(spec.Env),
							Resources:  resources,
							WorkingDir: "/",
							VolumeMounts: []corev1.VolumeMount{
								{Name: "bundle", MountPath: bundleMount, ReadOnly: true},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "bundle",
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: jobName},
								},
							},
						},
					},
				},
			},
		},
	}

	created, err := r.jobManager.CreateJob(ctx, job)
	if err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:   jobName,
			Labels: map[string]string{jobLabel: jobName},
			OwnerReferences: []metav1.OwnerReference{
				{
					APIVersion: "batch/v1",
					Kind:       "Job",
					Name:       created.Name,
					UID:        created.UID,
				},
			},
		},
		BinaryData: map[string][]byte{bundleKey: bundle.Bytes()},
	}
	if _, err := r.jobManager.CreateConfigMap(ctx, cm); err != nil {
		// without its bundle the pod never starts
		_ = r.jobManager.DeleteJob(ctx, jobName)
		return "", fmt.Errorf("creating bundle configmap: %w", err)
	}

	r.logger.Debug("kubernetes job created", "job", jobName, "namespace", r.jobManager.Namespace())
	return jobName, nil
}

// Status reads the Job's conditions. A Job that no longer exists was deleted
// by Stop and reports STOPPED.
func (r *K8sRunner) Status(ctx context.Context, remoteID string) (Status, error) {
	job, err := r.jobManager.GetJob(ctx, remoteID)
	if apierrors.IsNotFound(err) {
		return StatusStopped, nil
	}
	if err != nil {
		return "", fmt.Errorf("getting job: %w", err)
	}
	return jobStatus(job), nil
}

func (r *K8sRunner) Logs(ctx context.Context, remoteID string) (string, error) {
	pods, err := r.jobManager.GetJobPods(ctx, remoteID)
	if err != nil {
		return "", fmt.Errorf("listing job pods: %w", err)
	}
	if len(pods.Items) == 0 {
		return "", nil
	}
	return r.jobManager.GetPodLogs(ctx, pods.Items[0].Name)
}

func (r *K8sRunner) Stop(ctx context.Context, remoteID string) (bool, error) {
	job, err := r.jobManager.GetJob(ctx, remoteID)
	if apierrors.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting job: %w", err)
	}
	if jobStatus(job).Finished() {
		return true, nil
	}

	if err := r.jobManager.DeleteJob(ctx, remoteID); err != nil && !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("deleting job: %w", err)
	}
	return false, nil
}

func jobStatus(job *batchv1.Job) Status {
	for _, condition := range job.Status.Conditions {
		if condition.Status != corev1.ConditionTrue {
			continue
		}
		switch condition.Type {
		case batchv1.JobComplete:
			return StatusSucceeded
		case batchv1.JobFailed:
			return StatusFailed
		}
	}

	// Kueue has not admitted it yet
	if job.Spec.Suspend != nil && *job.Spec.Suspend {
		return StatusPending
	}
	if job.Status.Active > 0 {
		return StatusRunning
	}
	return StatusPending
}

// buildScript unpacks the bundle, installs packages and replaces the shell
// with the entrypoint.
func buildScript(spec JobSpec) string {
	lines := []string{
		"set -e",
		"mkdir -p " + workspacePath,
		fmt.Sprintf("tar -xf %s/%s -C %s", bundleMount, bundleKey, workspacePath),
		"cd " + workspacePath,
	}
	if len(spec.Packages) > 0 {
		quoted := make([]string, len(spec.Packages))
		for i, p := range spec.Packages {
			quoted[i] = shellQuote(p)
		}
		lines = append(lines, "pip install --no-cache-dir "+strings.Join(quoted, " "))
	}
	lines = append(lines, "exec "+spec.Entrypoint)
	return strings.Join(lines, "\n")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func envMapToEnvVars(envMap map[string]string) []corev1.EnvVar {
	if len(envMap) == 0 {
		return nil
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	envVars := make([]corev1.EnvVar, 0, len(envMap))
	for _, k := range keys {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: envMap[k]})
	}
	return envVars
}

var _ Runner = (*K8sRunner)(nil)
