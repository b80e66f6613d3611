package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	appLabel          = "arlstage"
	kindLabel         = "arlstage/kind"
	expiresAnnotation = "arlstage/expires"
	stateKey          = "state"
)

// KubernetesManager implements the Manager interface using Kubernetes
// ConfigMaps: one per run, plus one per held lock.
type KubernetesManager struct {
	client    kubernetes.Interface
	namespace string
}

// NewKubernetesManager connects with the in-cluster configuration, falling
// back to the kubeconfig named by KUBECONFIG or the default loading rules.
func NewKubernetesManager(namespace string) (*KubernetesManager, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if path := os.Getenv("KUBECONFIG"); path != "" {
			rules.ExplicitPath = path
		}
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return NewKubernetesManagerWithClient(client, namespace), nil
}

// NewKubernetesManagerWithClient creates a manager on an existing client
func NewKubernetesManagerWithClient(client kubernetes.Interface, namespace string) *KubernetesManager {
	return &KubernetesManager{
		client:    client,
		namespace: namespace,
	}
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// resourceName derives a valid ConfigMap name from key.
func resourceName(prefix, key string) string {
	name := prefix + "-" + strings.Trim(invalidNameChars.ReplaceAllString(strings.ToLower(key), "-"), "-")
	if len(name) > 253 {
		name = name[:253]
	}
	return strings.TrimRight(name, "-")
}

func (k *KubernetesManager) stateName(jobID string) string {
	return resourceName("arlstage-run", jobID)
}

func (k *KubernetesManager) lockName(key string) string {
	return resourceName("arlstage-lock", key)
}

func (k *KubernetesManager) configMaps() typedcorev1.ConfigMapInterface {
	return k.client.CoreV1().ConfigMaps(k.namespace)
}

func (k *KubernetesManager) stateConfigMap(state *State) (*corev1.ConfigMap, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: k.stateName(state.JobID),
			Labels: map[string]string{
				"app":     appLabel,
				kindLabel: "run",
			},
		},
		Data: map[string]string{
			stateKey: string(data),
		},
	}, nil
}

func decodeState(cm *corev1.ConfigMap) (*State, error) {
	var state State
	if err := json.Unmarshal([]byte(cm.Data[stateKey]), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (k *KubernetesManager) GetState(ctx context.Context, jobID string) (*State, error) {
	cm, err := k.configMaps().Get(ctx, k.stateName(jobID), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ConfigMap: %w", err)
	}
	return decodeState(cm)
}

func (k *KubernetesManager) UpdateState(ctx context.Context, state *State) error {
	existing, err := k.configMaps().Get(ctx, k.stateName(state.JobID), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("state not found for job %s", state.JobID)
		}
		return fmt.Errorf("failed to get ConfigMap: %w", err)
	}

	cp := *state
	cp.LastUpdated = time.Now()
	cm, err := k.stateConfigMap(&cp)
	if err != nil {
		return err
	}
	cm.ResourceVersion = existing.ResourceVersion

	if _, err := k.configMaps().Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) CreateState(ctx context.Context, state *State) error {
	cm, err := k.stateConfigMap(state)
	if err != nil {
		return err
	}

	if _, err := k.configMaps().Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("state already exists for job %s", state.JobID)
		}
		return fmt.Errorf("failed to create ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) DeleteState(ctx context.Context, jobID string) error {
	err := k.configMaps().Delete(ctx, k.stateName(jobID), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) ListStates(ctx context.Context, table string) ([]*State, error) {
	list, err := k.configMaps().List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("app=%s,%s=run", appLabel, kindLabel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ConfigMaps: %w", err)
	}

	var states []*State
	for i := range list.Items {
		state, err := decodeState(&list.Items[i])
		if err != nil {
			continue // Skip invalid states
		}
		if matchesTable(state, table) {
			states = append(states, state)
		}
	}

	sortStates(states)
	return states, nil
}

// LockState creates the lock ConfigMap. Creation is atomic on the API
// server, so only one holder succeeds; an expired lock is taken over with an
// optimistic update.
func (k *KubernetesManager) LockState(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	lock := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: k.lockName(key),
			Labels: map[string]string{
				"app":     appLabel,
				kindLabel: "lock",
			},
			Annotations: map[string]string{
				expiresAnnotation: now.Add(ttl).UTC().Format(time.RFC3339Nano),
			},
		},
		Data: map[string]string{
			"key":       key,
			"locked_at": now.UTC().Format(time.RFC3339Nano),
		},
	}

	_, err := k.configMaps().Create(ctx, lock, metav1.CreateOptions{})
	if err == nil {
		return true, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return false, fmt.Errorf("failed to create lock: %w", err)
	}

	existing, err := k.configMaps().Get(ctx, lock.Name, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to get lock: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, existing.Annotations[expiresAnnotation])
	if err == nil && expires.After(now) {
		return false, nil
	}

	lock.ResourceVersion = existing.ResourceVersion
	if _, err := k.configMaps().Update(ctx, lock, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to take over lock: %w", err)
	}
	return true, nil
}

func (k *KubernetesManager) UnlockState(ctx context.Context, key string) error {
	err := k.configMaps().Delete(ctx, k.lockName(key), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}
