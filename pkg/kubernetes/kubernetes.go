// Package kubernetes provides a stash.Store that keeps entries in the data
// of a single Kubernetes ConfigMap or Secret.
package kubernetes

import (
	"context"
	"fmt"

	"github.com/zoobzio/stash"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
)

// ResourceType specifies the type of Kubernetes resource that holds entries.
type ResourceType int

const (
	// ConfigMap stores entries in a ConfigMap's binaryData.
	ConfigMap ResourceType = iota
	// Secret stores entries in a Secret's data.
	Secret
)

// Store keeps each entry as one data key of a ConfigMap or Secret. Keys
// must be valid data keys: letters, digits and "-._".
//
// The resource is created on first write. Updates are read-modify-write
// and retried on conflict, so concurrent writers of different keys in the
// same resource do not lose each other's entries.
type Store struct {
	client       kubernetes.Interface
	namespace    string
	name         string
	resourceType ResourceType
	backoff      wait.Backoff
}

// Option configures a Store.
type Option func(*Store)

// WithResourceType sets the resource type that holds entries.
// Defaults to ConfigMap.
func WithResourceType(rt ResourceType) Option {
	return func(s *Store) {
		s.resourceType = rt
	}
}

// WithBackoff sets the retry backoff for conflicting updates.
// Defaults to retry.DefaultRetry.
func WithBackoff(backoff wait.Backoff) Option {
	return func(s *Store) {
		s.backoff = backoff
	}
}

// New creates a Store over the named resource.
func New(client kubernetes.Interface, namespace, name string, opts ...Option) *Store {
	s := &Store{
		client:       client,
		namespace:    namespace,
		name:         name,
		resourceType: ConfigMap,
		backoff:      retry.DefaultRetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the data entry for key. A missing resource reads as absent.
// ConfigMap entries written as plain data are returned too.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	switch s.resourceType {
	case Secret:
		secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to get secret: %w", err)
		}
		data, ok := secret.Data[key]
		return nonNil(data, ok), ok, nil
	default:
		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to get configmap: %w", err)
		}
		if data, ok := cm.BinaryData[key]; ok {
			return nonNil(data, ok), true, nil
		}
		if data, ok := cm.Data[key]; ok {
			return []byte(data), true, nil
		}
		return nil, false, nil
	}
}

// Set writes data to the entry for key, creating the resource if needed.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	return s.apply(ctx, key, nonNil(data, true))
}

// Delete removes the entry for key. The resource itself is kept.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.apply(ctx, key, nil)
}

// apply sets key to data, or removes key when data is nil.
func (s *Store) apply(ctx context.Context, key string, data []byte) error {
	retriable := func(err error) bool {
		return apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err)
	}
	err := retry.OnError(s.backoff, retriable, func() error {
		if s.resourceType == Secret {
			return s.applySecret(ctx, key, data)
		}
		return s.applyConfigMap(ctx, key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", s.namespace, s.name, err)
	}
	return nil
}

func (s *Store) applyConfigMap(ctx context.Context, key string, data []byte) error {
	configMaps := s.client.CoreV1().ConfigMaps(s.namespace)

	cm, err := configMaps.Get(ctx, s.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if data == nil {
			return nil
		}
		_, err = configMaps.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: s.name, Namespace: s.namespace},
			BinaryData: map[string][]byte{key: data},
		}, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}

	cm = cm.DeepCopy()
	_, inData := cm.Data[key]
	_, inBinary := cm.BinaryData[key]
	if data == nil && !inData && !inBinary {
		return nil
	}
	delete(cm.Data, key)
	if data == nil {
		delete(cm.BinaryData, key)
	} else {
		if cm.BinaryData == nil {
			cm.BinaryData = make(map[string][]byte)
		}
		cm.BinaryData[key] = data
	}

	_, err = configMaps.Update(ctx, cm, metav1.UpdateOptions{})
	return err
}

func (s *Store) applySecret(ctx context.Context, key string, data []byte) error {
	secrets := s.client.CoreV1().Secrets(s.namespace)

	secret, err := secrets.Get(ctx, s.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if data == nil {
			return nil
		}
		_, err = secrets.Create(ctx, &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: s.name, Namespace: s.namespace},
			Type:       corev1.SecretTypeOpaque,
			Data:       map[string][]byte{key: data},
		}, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}

	secret = secret.DeepCopy()
	if _, ok := secret.Data[key]; data == nil && !ok {
		return nil
	}
	if data == nil {
		delete(secret.Data, key)
	} else {
		if secret.Data == nil {
			secret.Data = make(map[string][]byte)
		}
		secret.Data[key] = data
	}

	_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
	return err
}

// nonNil keeps present empty entries distinguishable from absent ones.
func nonNil(data []byte, ok bool) []byte {
	if ok && data == nil {
		return []byte{}
	}
	return data
}

var _ stash.Store = (*Store)(nil)
