// Package kubernetes provides a secrets.Store backed by the data keys of a
// single Kubernetes Secret object.
package kubernetes

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/crowdit/crowdmcp/pkg/secrets"
)

// Config points at the backing Secret.
type Config struct {
	Namespace  string
	SecretName string
	// Kubeconfig is an explicit kubeconfig path. Empty uses in-cluster
	// config or $KUBECONFIG.
	Kubeconfig string
}

// Store reads and writes keys of one Secret.
type Store struct {
	client    client.Client
	namespace string
	name      string
}

var _ secrets.Store = (*Store)(nil)

// NewScheme returns a runtime.Scheme with core/v1 registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register core types: %w", err)
	}
	return scheme, nil
}

// New builds a controller-runtime client from the environment.
func New(cfg Config) (*Store, error) {
	restCfg, err := loadRESTConfig(cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("loading kubernetes config: %w", err)
	}
	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}
	c, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return NewWithClient(c, cfg.Namespace, cfg.SecretName), nil
}

func loadRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return ctrlconfig.GetConfig()
}

// NewWithClient wraps an existing client.
func NewWithClient(c client.Client, namespace, name string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	return &Store{client: c, namespace: namespace, name: name}
}

func (s *Store) key() types.NamespacedName {
	return types.NamespacedName{Namespace: s.namespace, Name: s.name}
}

// Get returns data[name] of the Secret.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	var secret corev1.Secret
	if err := s.client.Get(ctx, s.key(), &secret); err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("secret object %s: %w", s.key(), secrets.ErrNotFound)
		}
		return "", fmt.Errorf("reading secret object %s: %w", s.key(), err)
	}
	v, ok := secret.Data[name]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return string(v), nil
}

// Put sets data[name], creating the Secret when it is missing. Update
// conflicts are retried.
func (s *Store) Put(ctx context.Context, name, value string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var secret corev1.Secret
		err := s.client.Get(ctx, s.key(), &secret)
		if apierrors.IsNotFound(err) {
			secret = corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      s.name,
					Namespace: s.namespace,
					Labels:    map[string]string{"app.kubernetes.io/managed-by": "crowdmcp"},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{name: []byte(value)},
			}
			return s.client.Create(ctx, &secret)
		}
		if err != nil {
			return fmt.Errorf("reading secret object %s: %w", s.key(), err)
		}

		if secret.Data == nil {
			secret.Data = map[string][]byte{}
		}
		secret.Data[name] = []byte(value)
		return s.client.Update(ctx, &secret)
	})
}
