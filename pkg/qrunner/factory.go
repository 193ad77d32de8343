package qrunner

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/quatton/qgate/pkg/k8s"
	"github.com/quatton/qgate/pkg/qlog"
	"k8s.io/client-go/kubernetes"
)

const (
	BackendRay        = "ray"
	BackendKubernetes = "kubernetes"
	BackendLocal      = "local"
)

// FactoryConfig holds everything the backends need. It is built once from the
// server configuration.
type FactoryConfig struct {
	// RequestTimeout caps each Ray API call. Zero leaves calls uncapped.
	RequestTimeout time.Duration

	// Container is the pod setup for k8s:// resources.
	Container ContainerConfig

	// Kubeconfig is used outside a cluster. Empty falls back to KUBECONFIG
	// and ~/.kube/config.
	Kubeconfig string

	// KubeClient overrides client construction.
	KubeClient kubernetes.Interface

	// LocalRunsDir is where local:// runs keep their files.
	LocalRunsDir string

	// Recorder, when set, observes every remote call.
	Recorder CallRecorder
}

// CallRecorder observes calls made to a backend.
type CallRecorder interface {
	RecordRemoteCall(ctx context.Context, backend, op string, err error)
}

// Factory turns a compute resource host into a Runner.
type Factory struct {
	cfg    FactoryConfig
	logger *qlog.Logger

	mu         sync.Mutex
	kubeClient kubernetes.Interface
	local      *LocalRunner
}

func NewFactory(cfg FactoryConfig, logger *qlog.Logger) *Factory {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	return &Factory{cfg: cfg, logger: logger, kubeClient: cfg.KubeClient}
}

// Backend names the backend a host selects, or "" when the scheme is unknown.
func Backend(host string) string {
	u, err := url.Parse(host)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http", "https":
		return BackendRay
	case "k8s":
		return BackendKubernetes
	case "local":
		return BackendLocal
	}
	return ""
}

// For returns the runner for host:
//
//	http(s)://host:port  Ray dashboard API
//	k8s://namespace      Kubernetes Jobs in namespace
//	local://             child processes of the gateway
func (f *Factory) For(host string) (Runner, error) {
	backend := Backend(host)

	var (
		runner Runner
		err    error
	)
	switch backend {
	case BackendRay:
		runner = NewRayRunner(host, f.cfg.RequestTimeout, f.logger)
	case BackendKubernetes:
		runner, err = f.kubernetes(host)
	case BackendLocal:
		runner = f.localRunner()
	default:
		return nil, fmt.Errorf("unsupported compute resource host %q", host)
	}
	if err != nil {
		return nil, err
	}

	if f.cfg.Recorder != nil {
		runner = &observedRunner{next: runner, backend: backend, recorder: f.cfg.Recorder}
	}
	return runner, nil
}

func (f *Factory) kubernetes(host string) (Runner, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	namespace := u.Host
	if namespace == "" {
		namespace = "default"
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kubeClient == nil {
		client, err := k8s.NewClient(f.cfg.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("creating k8s client: %w", err)
		}
		f.kubeClient = client
	}
	return NewK8sRunner(f.kubeClient, namespace, f.cfg.Container, f.logger), nil
}

// localRunner is shared so Stop can reach processes started by earlier requests.
func (f *Factory) localRunner() *LocalRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.local == nil {
		opts := []LocalRunnerOption{WithLogger(f.logger)}
		if f.cfg.LocalRunsDir != "" {
			opts = append(opts, WithBaseDir(f.cfg.LocalRunsDir))
		}
		f.local = NewLocalRunner(opts...)
	}
	return f.local
}

type observedRunner struct {
	next     Runner
	backend  string
	recorder CallRecorder
}

func (o *observedRunner) Submit(ctx context.Context, spec JobSpec) (string, error) {
	id, err := o.next.Submit(ctx, spec)
	o.recorder.RecordRemoteCall(ctx, o.backend, "submit", err)
	return id, err
}

func (o *observedRunner) Status(ctx context.Context, remoteID string) (Status, error) {
	status, err := o.next.Status(ctx, remoteID)
	o.recorder.RecordRemoteCall(ctx, o.backend, "status", err)
	return status, err
}

func (o *observedRunner) Logs(ctx context.Context, remoteID string) (string, error) {
	logs, err := o.next.Logs(ctx, remoteID)
	o.recorder.RecordRemoteCall(ctx, o.backend, "logs", err)
	return logs, err
}

func (o *observedRunner) Stop(ctx context.Context, remoteID string) (bool, error) {
	already, err := o.next.Stop(ctx, remoteID)
	o.recorder.RecordRemoteCall(ctx, o.backend, "stop", err)
	return already, err
}
