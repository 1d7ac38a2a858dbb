package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type stepKey struct {
	step   string
	status string
}

type collector struct {
	mu        sync.Mutex
	cycles    uint64
	steps     map[stepKey]uint64
	transfers map[string]uint64
}

var agentCollector = &collector{
	steps:     make(map[stepKey]uint64),
	transfers: make(map[string]uint64),
}

// ObserveCycle records one completed pipeline invocation.
func ObserveCycle() {
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.cycles++
}

// ObserveStep records the outcome of a single pipeline step.
func ObserveStep(step string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.steps[stepKey{step: step, status: status}]++
}

// ObserveTransfer records the outcome of one on-chain transfer attempt.
func ObserveTransfer(err error) {
	status := "confirmed"
	if err != nil {
		status = "failed"
	}
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.transfers[status]++
}

// Snapshot is a point-in-time copy of the counters, logged at cycle end.
type Snapshot struct {
	Cycles             uint64
	StepFailures       uint64
	TransfersConfirmed uint64
	TransfersFailed    uint64
}

// Read returns the current counter values.
func Read() Snapshot {
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()

	snap := Snapshot{Cycles: agentCollector.cycles}
	for key, value := range agentCollector.steps {
		if key.status == "error" {
			snap.StepFailures += value
		}
	}
	snap.TransfersConfirmed = agentCollector.transfers["confirmed"]
	snap.TransfersFailed = agentCollector.transfers["failed"]
	return snap
}

// Handler exposes the counters in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, agentCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type stepMetric struct {
		stepKey
		value uint64
	}
	steps := make([]stepMetric, 0, len(c.steps))
	for key, value := range c.steps {
		steps = append(steps, stepMetric{stepKey: key, value: value})
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].step == steps[j].step {
			return steps[i].status < steps[j].status
		}
		return steps[i].step < steps[j].step
	})

	transferStatuses := make([]string, 0, len(c.transfers))
	for status := range c.transfers {
		transferStatuses = append(transferStatuses, status)
	}
	sort.Strings(transferStatuses)

	var builder strings.Builder
	builder.Grow(512)

	builder.WriteString("# HELP openagent_cycles_total Total number of pipeline cycles run.\n")
	builder.WriteString("# TYPE openagent_cycles_total counter\n")
	builder.WriteString(fmt.Sprintf("openagent_cycles_total %d\n", c.cycles))

	builder.WriteString("# HELP openagent_steps_total Pipeline step outcomes.\n")
	builder.WriteString("# TYPE openagent_steps_total counter\n")
	for _, metric := range steps {
		builder.WriteString(fmt.Sprintf("openagent_steps_total{step=\"%s\",status=\"%s\"} %d\n",
			escape(metric.step), escape(metric.status), metric.value))
	}

	builder.WriteString("# HELP openagent_transfers_total On-chain transfer outcomes.\n")
	builder.WriteString("# TYPE openagent_transfers_total counter\n")
	for _, status := range transferStatuses {
		builder.WriteString(fmt.Sprintf("openagent_transfers_total{status=\"%s\"} %d\n",
			escape(status), c.transfers[status]))
	}

	return builder.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
