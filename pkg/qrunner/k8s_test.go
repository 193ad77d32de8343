package qrunner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestK8sRunnerSubmit(t *testing.T) {
	client := fake.NewSimpleClientset()
	runner := NewK8sRunner(client, "jobs", DefaultContainerConfig(), nil)
	ctx := context.Background()

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "main.py"), []byte("print(1)"), 0o644)

	name, err := runner.Submit(ctx, JobSpec{
		Entrypoint: "python main.py",
		WorkingDir: dir,
		Env:        map[string]string{"B": "2", "A": "1"},
		Packages:   []string{"numpy", "it's"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job, err := client.BatchV1().Jobs("jobs").Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("job not created: %v", err)
	}
	container := job.Spec.Template.Spec.Containers[0]
	script := container.Command[2]
	if !strings.Contains(script, "pip install --no-cache-dir 'numpy' 'it'\"'\"'s'") {
		t.Errorf("packages not installed safely:\n%s", script)
	}
	if !strings.HasSuffix(script, "exec python main.py") {
		t.Errorf("entrypoint missing:\n%s", script)
	}
	if container.Env[0].Name != "A" || container.Env[1].Name != "B" {
		t.Errorf("env not sorted: %+v", container.Env)
	}
	if *job.Spec.Suspend {
		t.Error("job without a queue should not be suspended")
	}

	cm, err := client.CoreV1().ConfigMaps("jobs").Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("bundle configmap not created: %v", err)
	}
	if len(cm.BinaryData[bundleKey]) == 0 {
		t.Error("bundle is empty")
	}
	if cm.OwnerReferences[0].Name != name {
		t.Errorf("configmap not owned by job: %+v", cm.OwnerReferences)
	}
}

func TestK8sRunnerQueue(t *testing.T) {
	client := fake.NewSimpleClientset()
	cfg := DefaultContainerConfig()
	cfg.QueueName = "gpu"
	runner := NewK8sRunner(client, "jobs", cfg, nil)
	ctx := context.Background()

	name, err := runner.Submit(ctx, JobSpec{Entrypoint: "python main.py"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job, _ := client.BatchV1().Jobs("jobs").Get(ctx, name, metav1.GetOptions{})
	if job.Labels["kueue.x-k8s.io/queue-name"] != "gpu" || !*job.Spec.Suspend {
		t.Fatalf("queued job should be labelled and suspended: %+v", job.ObjectMeta.Labels)
	}

	status, _ := runner.Status(ctx, name)
	if status != StatusPending {
		t.Fatalf("suspended job should be PENDING, got %s", status)
	}
}

func TestJobStatus(t *testing.T) {
	cases := []struct {
		name string
		job  batchv1.Job
		want Status
	}{
		{"new", batchv1.Job{}, StatusPending},
		{"active", batchv1.Job{Status: batchv1.JobStatus{Active: 1}}, StatusRunning},
		{"complete", batchv1.Job{Status: batchv1.JobStatus{Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobComplete, Status: corev1.ConditionTrue},
		}}}, StatusSucceeded},
		{"failed", batchv1.Job{Status: batchv1.JobStatus{Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobFailed, Status: corev1.ConditionTrue},
		}}}, StatusFailed},
		{"condition not true", batchv1.Job{Status: batchv1.JobStatus{Active: 1, Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobFailed, Status: corev1.ConditionFalse},
		}}}, StatusRunning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := jobStatus(&tc.job); got != tc.want {
				t.Fatalf("jobStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestK8sRunnerLogsAndStop(t *testing.T) {
	client := fake.NewSimpleClientset()
	runner := NewK8sRunner(client, "jobs", DefaultContainerConfig(), nil)
	ctx := context.Background()

	name, err := runner.Submit(ctx, JobSpec{Entrypoint: "python main.py"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if logs, err := runner.Logs(ctx, name); err != nil || logs != "" {
		t.Fatalf("no pods yet, Logs = %q, %v", logs, err)
	}

	client.CoreV1().Pods("jobs").Create(ctx, &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name + "-abcde", Labels: map[string]string{"job-name": name}},
	}, metav1.CreateOptions{})

	logs, err := runner.Logs(ctx, name)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if logs != "fake logs" {
		t.Fatalf("unexpected logs %q", logs)
	}

	already, err := runner.Stop(ctx, name)
	if err != nil || already {
		t.Fatalf("Stop = %v, %v; want false, nil", already, err)
	}
	status, err := runner.Status(ctx, name)
	if err != nil || status != StatusStopped {
		t.Fatalf("deleted job should be STOPPED, got %s, %v", status, err)
	}

	already, err = runner.Stop(ctx, name)
	if err != nil || !already {
		t.Fatalf("second Stop = %v, %v; want true, nil", already, err)
	}
}

func TestK8sRunnerStopFinishedJob(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset(&batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "done", Namespace: "jobs"},
		Status: batchv1.JobStatus{Conditions: []batchv1.JobCondition{
			{Type: batchv1.JobComplete, Status: corev1.ConditionTrue},
		}},
	})
	runner := NewK8sRunner(client, "jobs", DefaultContainerConfig(), nil)

	already, err := runner.Stop(ctx, "done")
	if err != nil || !already {
		t.Fatalf("Stop = %v, %v; want true, nil", already, err)
	}
	if _, err := client.BatchV1().Jobs("jobs").Get(ctx, "done", metav1.GetOptions{}); err != nil {
		t.Fatalf("finished job should be left alone: %v", err)
	}
}
