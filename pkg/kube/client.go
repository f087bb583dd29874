package kube

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// serviceAccountNamespaceFile holds the namespace of the pod we run in
	serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

	defaultWatchTimeoutSeconds = int64(math.MaxInt32)
)

// Client lists and watches the pods of one namespace
type Client struct {
	clientset           kubernetes.Interface
	namespace           string
	labelSelector       string
	watchTimeoutSeconds int64
}

// New creates a Client on top of an existing clientset
func New(clientset kubernetes.Interface, namespace string, opts ...Option) *Client {
	c := &Client{
		clientset:           clientset,
		namespace:           namespace,
		watchTimeoutSeconds: defaultWatchTimeoutSeconds,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewInCluster creates a Client from the pod's service account credentials
func NewInCluster(namespace string, opts ...Option) (*Client, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("kube: in-cluster config: %w", err)
	}
	return newForConfig(cfg, namespace, opts...)
}

// NewFromKubeconfig creates a Client from a kubeconfig file, used when the
// process runs outside the cluster but should still track it
func NewFromKubeconfig(path, namespace string, opts ...Option) (*Client, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("kube: load kubeconfig %q: %w", path, err)
	}
	return newForConfig(cfg, namespace, opts...)
}

func newForConfig(cfg *rest.Config, namespace string, opts ...Option) (*Client, error) {
	// Watches are long-lived; a client-side timeout would cut every stream short
	cfg.Timeout = 0

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kube: create clientset: %w", err)
	}
	return New(clientset, namespace, opts...), nil
}

// Namespace returns the namespace the client is scoped to
func (c *Client) Namespace() string {
	return c.namespace
}

// WatchPods opens a new pod watch. No resource version is sent, so the server
// first replays every existing pod as an ADDED event and then streams changes.
func (c *Client) WatchPods(ctx context.Context) (watch.Interface, error) {
	timeout := c.watchTimeoutSeconds
	w, err := c.clientset.CoreV1().Pods(c.namespace).Watch(ctx, metav1.ListOptions{
		LabelSelector:  c.labelSelector,
		TimeoutSeconds: &timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("kube: watch pods in %q: %w", c.namespace, err)
	}
	return w, nil
}

// ListPods returns the names of all pods currently in the namespace
func (c *Client) ListPods(ctx context.Context) ([]string, error) {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: c.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("kube: list pods in %q: %w", c.namespace, err)
	}

	names := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		names = append(names, pods.Items[i].Name)
	}
	return names, nil
}

// ObjectName extracts the name from a watched object. It returns "" for
// objects without metadata, such as the Status carried by ERROR events.
func ObjectName(obj runtime.Object) string {
	if obj == nil {
		return ""
	}
	accessor, err := meta.Accessor(obj)
	if err != nil {
		return ""
	}
	return accessor.GetName()
}

// InCluster reports whether the process runs inside a Kubernetes pod
func InCluster() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != "" && os.Getenv("KUBERNETES_SERVICE_PORT") != ""
}

// CurrentNamespace returns the namespace of the service account mounted into
// the pod, or "" when not running in a cluster
func CurrentNamespace() string {
	data, err := os.ReadFile(serviceAccountNamespaceFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
