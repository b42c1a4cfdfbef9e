package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// suspendedTaintKeys and suspendedAnnotationKeys are the node-suspension
// signals named in §4.1's IsPodOnSuspendedNode.
var suspendedTaintKeys = map[string]struct{}{
	"node.kubernetes.io/unschedulable":                     {},
	"node.kubernetes.io/not-ready":                         {},
	"node.kubernetes.io/unreachable":                       {},
	"aws.amazon.com/spot-instance-terminating":             {},
	"cluster-autoscaler.kubernetes.io/scale-down-disabled": {},
	"node.kubernetes.io/suspend":                           {},
}

var suspendedAnnotationKeys = map[string]struct{}{
	"cluster-autoscaler.kubernetes.io/scale-down-disabled": {},
	"node.kubernetes.io/suspend":                           {},
	"node.kubernetes.io/suspended":                         {},
}

// DeletePod deletes a pod with the given grace period. Following
// pkg/node/poddeletion's treatment of DeletePod, a NotFound response on
// retry is success (§5: "pod-delete returns 404 on second call, which the
// activity treats as success").
func (c *Clients) DeletePod(ctx context.Context, namespace, name string, gracePeriodSeconds int64) error {
	err := c.Kube.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: &gracePeriodSeconds,
	})
	if err != nil && !kerrors.IsNotFound(err) {
		return fmt.Errorf("delete pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

// PodReadyState reports the pod phase check used by WaitForPodReady's
// stability loop. Split out from the polling loop itself (which lives in
// the activity, since only the activity layer may heartbeat and sleep)
// so it is unit-testable against a fake clientset.
func (c *Clients) PodReadyState(ctx context.Context, namespace, name string) (ready bool, terminal bool, err error) {
	pod, err := c.Kube.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return false, false, err
	}
	switch pod.Status.Phase {
	case corev1.PodFailed, corev1.PodSucceeded:
		return false, true, nil
	case corev1.PodRunning:
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady {
				return cond.Status == corev1.ConditionTrue, false, nil
			}
		}
		return false, false, nil
	default:
		return false, false, nil
	}
}

// IsPodOnSuspendedNode implements §4.1's fail-open node-suspension probe.
func (c *Clients) IsPodOnSuspendedNode(ctx context.Context, namespace, podName string) bool {
	pod, err := c.Kube.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil || pod.Spec.NodeName == "" {
		return false
	}
	node, err := c.Kube.CoreV1().Nodes().Get(ctx, pod.Spec.NodeName, metav1.GetOptions{})
	if err != nil {
		return false
	}
	if node.Spec.Unschedulable {
		return true
	}
	for _, taint := range node.Spec.Taints {
		if _, ok := suspendedTaintKeys[taint.Key]; ok {
			return true
		}
	}
	for key := range node.Annotations {
		if _, ok := suspendedAnnotationKeys[key]; ok {
			return true
		}
	}
	return false
}

// DeleteGracePeriod computes the grace period DeletePod should use, per
// §4.1: dc_util_timeout + 60 iff has_dc_util, else 30.
func DeleteGracePeriod(hasDCUtil bool, dcUtilTimeoutSeconds int) int64 {
	if hasDCUtil {
		return int64(dcUtilTimeoutSeconds) + 60
	}
	return 30
}

// PodReadyPollInterval and StabilityWindow are the constants of §4.1/B4:
// poll every 5s, require 20s of continuous readiness.
const (
	PodReadyPollInterval = 5 * time.Second
	StabilityWindow      = 20 * time.Second
)
