// Package k8s wraps the Kubernetes API surface named in SPEC_FULL.md §6.1:
// namespace/custom-resource listing, StatefulSet/Pod/Node reads, pod delete
// and exec. It holds the teacher's dual-client pair (a controller-runtime
// client next to a client-go clientset) from
// pkg/controller/machine/controller.go; every read, delete and exec in this
// package goes through the client-go clientset or the dynamic client, and
// the controller-runtime client is built but not used here.
package k8s

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// CrateDBGVR identifies the custom resource this module restarts.
// Group cloud.crate.io, version v1, plural cratedbs.
var CrateDBGVR = struct {
	Group, Version, Resource string
}{Group: "cloud.crate.io", Version: "v1", Resource: "cratedbs"}

// Clients bundles every Kubernetes access path an activity needs.
type Clients struct {
	Typed   ctrlruntimeclient.Client
	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
	Config  *rest.Config
}

// NewClients builds a Clients from a kubeconfig path/context pair, or from
// in-cluster config when kubeconfigPath is empty, matching
// pkg/controller/machine/kubeconfig.go's loader precedence.
func NewClients(kubeconfigPath, context string) (*Clients, error) {
	cfg, err := loadConfig(kubeconfigPath, context)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", classifyAuthError(err))
	}
	kube, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build dynamic client: %w", err)
	}
	typed, err := ctrlruntimeclient.New(cfg, ctrlruntimeclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("build typed client: %w", err)
	}
	return &Clients{Typed: typed, Kube: kube, Dynamic: dyn, Config: cfg}, nil
}

func loadConfig(kubeconfigPath, context string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{}
	if context != "" {
		overrides.CurrentContext = context
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}

// classifyAuthError wraps errors whose text mentions "ExpiredToken" or
// "security token" with a prompt to re-authenticate. Every other error,
// a 401 response included, is returned unchanged.
func classifyAuthError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if contains(msg, "ExpiredToken") || contains(msg, "security token") {
		return fmt.Errorf("credentials expired, re-authenticate and retry: %w", err)
	}
	return err
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
