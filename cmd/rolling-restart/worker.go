package main

import (
	"fmt"
	"net/http"

	"github.com/go-logr/zapr"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	ctrlruntimelog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/crateops/rolling-restart/internal/activities"
	"github.com/crateops/rolling-restart/internal/k8s"
	"github.com/crateops/rolling-restart/internal/metrics"
	wf "github.com/crateops/rolling-restart/internal/workflow"
)

var (
	workerKubeconfig string
	workerContext    string
	workerListenAddr string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker that executes rolling-restart workflows and activities",
	Long: `Hosts the workflow and activity definitions on the configured task
queue, the way original_source/rr/worker.py's WorkerManager does, plus a
liveness/readiness endpoint and a Prometheus metrics endpoint.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerKubeconfig, "kubeconfig", "", "Path to kubeconfig file (in-cluster config is used when empty)")
	workerCmd.Flags().StringVar(&workerContext, "context", "", "Kubernetes context to use")
	workerCmd.Flags().StringVar(&workerListenAddr, "listen-address", ":8086", "Address for the health and metrics endpoints")
}

func runWorker(cmd *cobra.Command, args []string) error {
	rawLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	ctrlruntimelog.SetLogger(zapr.NewLogger(rawLog.WithOptions(zap.AddCallerSkip(1))))
	log := rawLog.Sugar()

	clients, err := k8s.NewClients(workerKubeconfig, workerContext)
	if err != nil {
		return fmt.Errorf("build kubernetes clients: %w", err)
	}

	tc, err := client.Dial(client.Options{HostPort: flagTemporalAddress, Namespace: flagNamespace})
	if err != nil {
		return fmt.Errorf("connect to temporal at %s: %w", flagTemporalAddress, err)
	}
	defer tc.Close()

	metricsCollection := metrics.New()

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(5000))
	health.AddReadinessCheck("kubernetes-apiserver", func() error {
		_, err := clients.Kube.Discovery().ServerVersion()
		return err
	})
	health.AddReadinessCheck("temporal-frontend", func() error {
		_, err := tc.CheckHealth(cmd.Context(), &client.CheckHealthRequest{})
		return err
	})

	mux := http.NewServeMux()
	mux.Handle("/live", http.HandlerFunc(health.LiveEndpoint))
	mux.Handle("/ready", http.HandlerFunc(health.ReadyEndpoint))
	mux.Handle("/metrics", promhttp.Handler())
	metricsCollection.MustRegister(prometheus.DefaultRegisterer)

	go func() {
		log.Infow("serving health and metrics endpoints", "address", workerListenAddr)
		if err := http.ListenAndServe(workerListenAddr, mux); err != nil {
			log.Errorw("health/metrics server exited", "error", err)
		}
	}()

	w := worker.New(tc, flagTaskQueue, worker.Options{})

	acts := activities.New(clients, log, metricsCollection)
	acts.Register(func(fn interface{}, name string) {
		w.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	})

	w.RegisterWorkflow(wf.HealthGate)
	w.RegisterWorkflow(wf.MaintenanceGate)
	w.RegisterWorkflow(wf.PodRestart)
	w.RegisterWorkflow(wf.ClusterRestart)
	w.RegisterWorkflow(wf.Orchestrator)

	log.Infow("starting temporal worker", "task_queue", flagTaskQueue, "temporal_address", flagTemporalAddress)
	return w.Run(worker.InterruptCh())
}
