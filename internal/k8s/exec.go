package k8s

import (
	"bytes"
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// Exec runs a command inside the named container of a pod over the
// pods/exec subresource, the only channel §6.2 permits for reaching the
// database's SQL endpoint.
func (c *Clients) Exec(ctx context.Context, namespace, pod, container string, command []string) (stdout, stderr string, err error) {
	req := c.Kube.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.Config, "POST", req.URL())
	if err != nil {
		return "", "", fmt.Errorf("build exec executor: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &outBuf,
		Stderr: &errBuf,
	})
	if err != nil {
		return outBuf.String(), errBuf.String(), fmt.Errorf("exec in %s/%s: %w", namespace, pod, err)
	}
	return outBuf.String(), errBuf.String(), nil
}
