package k8s

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/crateops/rolling-restart/internal/model"
)

// ReadClusterHealth re-reads the custom resource's status and extracts the
// health symbol, for use by the Health-Gate's repeated polling.
func (c *Clients) ReadClusterHealth(ctx context.Context, namespace, crdName string) (model.HealthSymbol, error) {
	item, err := c.Dynamic.Resource(crateDBResource).Namespace(namespace).Get(ctx, crdName, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get custom resource %s/%s: %w", namespace, crdName, err)
	}
	return model.HealthSymbol(extractHealthStatus(*item)), nil
}
