package k8s

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/crateops/rolling-restart/internal/model"
)

var crateDBResource = schema.GroupVersionResource{
	Group: CrateDBGVR.Group, Version: CrateDBGVR.Version, Resource: CrateDBGVR.Resource,
}

// DiscoveredCluster wraps the ClusterDescriptor that discovery resolves. The
// custom resource name, distinct from the cluster name when the CRD's
// spec.cluster.name overrides it, is carried in its CustomResourceName field.
type DiscoveredCluster struct {
	model.ClusterDescriptor
}

// Discover enumerates every namespace, lists the custom resources in each,
// and resolves a ClusterDescriptor per match, following
// original_source/rr/activities.py::discover_clusters.
func (c *Clients) Discover(ctx context.Context, filterNames []string) ([]DiscoveredCluster, []string) {
	var clusters []DiscoveredCluster
	var errs []string

	namespaces, err := c.Kube.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		if kerrors.IsNotFound(err) {
			return nil, []string{"CrateDB CRD not found. Is the CrateDB operator installed?"}
		}
		return nil, []string{fmt.Sprintf("error listing namespaces: %v", err)}
	}

	var items []unstructured.Unstructured
	for _, ns := range namespaces.Items {
		list, err := c.Dynamic.Resource(crateDBResource).Namespace(ns.Name).List(ctx, metav1.ListOptions{})
		if err != nil {
			if kerrors.IsNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Sprintf("error querying namespace %s: %v", ns.Name, err))
			continue
		}
		items = append(items, list.Items...)
	}

	for _, item := range items {
		cluster, err := c.processCRDItem(ctx, item, filterNames)
		if err != nil {
			errs = append(errs, fmt.Sprintf("error processing CRD %s: %v", item.GetName(), err))
			continue
		}
		if cluster != nil {
			clusters = append(clusters, *cluster)
		}
	}
	return clusters, errs
}

func (c *Clients) processCRDItem(ctx context.Context, item unstructured.Unstructured, filterNames []string) (*DiscoveredCluster, error) {
	crdName := item.GetName()
	namespace := item.GetNamespace()

	clusterName := crdName
	if name, found, _ := unstructured.NestedString(item.Object, "spec", "cluster", "name"); found && name != "" {
		clusterName = name
	}

	if len(filterNames) > 0 && !stringInSlice(clusterName, filterNames) {
		return nil, nil
	}

	stsName, sts, err := c.findStatefulSet(ctx, crdName, clusterName, namespace)
	if err != nil {
		return nil, err
	}
	if sts == nil {
		return nil, fmt.Errorf("could not find StatefulSet for cluster %s", clusterName)
	}

	health := extractHealthStatus(item)

	hasPrestop, hasDCUtil, dcUtilTimeout := analyzePrestopHook(sts)

	pods, err := c.findPods(ctx, namespace, stsName, crdName, clusterName)
	if err != nil {
		return nil, err
	}

	replicas := int32(1)
	if sts.Spec.Replicas != nil {
		replicas = *sts.Spec.Replicas
	}

	return &DiscoveredCluster{ClusterDescriptor: model.ClusterDescriptor{
		Name:                clusterName,
		Namespace:           namespace,
		WorkloadController:  stsName,
		Health:              model.HealthSymbol(health),
		DesiredReplicas:     int(replicas),
		Pods:                pods,
		HasPrestopHook:      hasPrestop,
		HasDCUtil:           hasDCUtil,
		Suspended:           replicas == 0,
		CustomResourceName:  crdName,
		DrainTimeoutSeconds: dcUtilTimeout,
		MinAvailability:     model.MinAvailabilityPrimaries,
	}}, nil
}

func (c *Clients) findStatefulSet(ctx context.Context, crdName, clusterName, namespace string) (string, *appsv1.StatefulSet, error) {
	patterns := []string{
		"crate-data-hot-" + crdName,
		"crate-" + crdName,
		crdName,
		"crate-" + clusterName,
		"crate-data-hot-" + clusterName,
	}
	for _, pattern := range patterns {
		sts, err := c.Kube.AppsV1().StatefulSets(namespace).Get(ctx, pattern, metav1.GetOptions{})
		if err == nil {
			return pattern, sts, nil
		}
		if !kerrors.IsNotFound(err) {
			return "", nil, err
		}
	}
	return "", nil, nil
}

func extractHealthStatus(item unstructured.Unstructured) string {
	if health, found, _ := unstructured.NestedString(item.Object, "status", "crateDBStatus", "health"); found {
		return health
	}
	if health, found, _ := unstructured.NestedString(item.Object, "status", "health"); found {
		return health
	}
	return string(model.HealthUnknown)
}

var decommPatterns = []string{"dc_util", "dc-util", "dcutil", "decommission", "decomm", "/dc_util-", "/dc-util-"}

var timeoutPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:--|-)(?:timeout|t)\s*(?:=|\s+)(\d+)([smh]?)`),
	regexp.MustCompile(`timeout\s+(\d+)([smh]?)`),
	regexp.MustCompile(`-min-availability\s+\S+\s+-timeout\s+(\d+)([smh]?)`),
}

// analyzePrestopHook mirrors _analyze_prestop_hook / _extract_shell_command /
// _check_decommission_utility.
func analyzePrestopHook(sts *appsv1.StatefulSet) (hasPrestop, hasDCUtil bool, dcUtilTimeout int) {
	dcUtilTimeout = model.DefaultDrainTimeoutSeconds
	for _, container := range sts.Spec.Template.Spec.Containers {
		if container.Name != "crate" || container.Lifecycle == nil || container.Lifecycle.PreStop == nil {
			continue
		}
		hasPrestop = true
		exec := container.Lifecycle.PreStop.Exec
		if exec == nil || len(exec.Command) == 0 {
			continue
		}
		shellCmd := extractShellCommand(exec.Command)
		hasDCUtil, dcUtilTimeout = checkDecommissionUtility(shellCmd)
	}
	return hasPrestop, hasDCUtil, dcUtilTimeout
}

func extractShellCommand(cmd []string) string {
	if len(cmd) >= 3 && (cmd[0] == "/bin/sh" || cmd[0] == "/bin/bash") && cmd[1] == "-c" {
		return cmd[2]
	}
	return strings.Join(cmd, " ")
}

func checkDecommissionUtility(shellCommand string) (bool, int) {
	matched := false
	for _, p := range decommPatterns {
		if strings.Contains(shellCommand, p) {
			matched = true
			break
		}
	}
	if !matched {
		return false, model.DefaultDrainTimeoutSeconds
	}
	for _, re := range timeoutPatterns {
		m := re.FindStringSubmatch(shellCommand)
		if m == nil {
			continue
		}
		value, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "m":
			value *= 60
		case "h":
			value *= 3600
		}
		return true, value
	}
	return true, model.DefaultDrainTimeoutSeconds
}

// findPods mirrors _find_pods: label selectors tried in order, then
// owner-reference fallback.
func (c *Clients) findPods(ctx context.Context, namespace, stsName, crdName, clusterName string) ([]string, error) {
	selectors := []string{
		fmt.Sprintf("app=crate,crate-cluster=%s", crdName),
		fmt.Sprintf("app=crate,crate-cluster=%s", clusterName),
		fmt.Sprintf("app=crate,statefulset=%s", stsName),
		"app=crate",
	}
	for _, sel := range selectors {
		if _, err := labels.Parse(sel); err != nil {
			continue
		}
		list, err := c.Kube.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: sel})
		if err != nil {
			continue
		}
		if len(list.Items) > 0 {
			names := make([]string, 0, len(list.Items))
			for _, p := range list.Items {
				names = append(names, p.Name)
			}
			return names, nil
		}
	}

	all, err := c.Kube.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, pod := range all.Items {
		for _, owner := range pod.OwnerReferences {
			if owner.Kind == "StatefulSet" && owner.Name == stsName {
				names = append(names, pod.Name)
			}
		}
	}
	return names, nil
}

func stringInSlice(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
