package qrunner

import (
	"context"
	"testing"

	"k8s.io/client-go/kubernetes/fake"
)

type recordedCall struct {
	backend, op string
	failed      bool
}

type fakeRecorder struct {
	calls []recordedCall
}

func (f *fakeRecorder) RecordRemoteCall(_ context.Context, backend, op string, err error) {
	f.calls = append(f.calls, recordedCall{backend, op, err != nil})
}

func TestBackend(t *testing.T) {
	cases := map[string]string{
		"http://ray:8265":   BackendRay,
		"https://ray.local": BackendRay,
		"k8s://jobs":        BackendKubernetes,
		"local://":          BackendLocal,
		"ftp://nope":        "",
		"":                  "",
	}
	for host, want := range cases {
		if got := Backend(host); got != want {
			t.Errorf("Backend(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestFactoryFor(t *testing.T) {
	f := NewFactory(FactoryConfig{
		KubeClient:   fake.NewSimpleClientset(),
		LocalRunsDir: t.TempDir(),
	}, nil)

	r, err := f.For("http://ray:8265")
	if err != nil {
		t.Fatalf("For ray: %v", err)
	}
	if _, ok := r.(*RayRunner); !ok {
		t.Fatalf("expected RayRunner, got %T", r)
	}

	r, err = f.For("k8s://jobs")
	if err != nil {
		t.Fatalf("For k8s: %v", err)
	}
	if k, ok := r.(*K8sRunner); !ok || k.jobManager.Namespace() != "jobs" {
		t.Fatalf("expected K8sRunner in namespace jobs, got %T", r)
	}

	a, _ := f.For("local://")
	b, _ := f.For("local://")
	if a != b {
		t.Fatal("local runner should be shared between calls")
	}

	if _, err := f.For("ftp://nope"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestFactoryRecordsCalls(t *testing.T) {
	rec := &fakeRecorder{}
	f := NewFactory(FactoryConfig{LocalRunsDir: t.TempDir(), Recorder: rec}, nil)

	r, err := f.For("local://")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	r.Status(context.Background(), "missing")

	if len(rec.calls) != 1 || rec.calls[0] != (recordedCall{BackendLocal, "status", true}) {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
}
