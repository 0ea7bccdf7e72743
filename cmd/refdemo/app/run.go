package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sharedref/domain/ownership"
	"sharedref/infra/kafka"
	"sharedref/infra/memory"
	"sharedref/infra/metrics"
	"sharedref/infra/sequence"
	"sharedref/jobs/broadcaster"
)

type allocator interface {
	memory.Allocator
	memory.StatsSource
}

// Run executes the scenarios described by cfg and writes a report to out.
// With a metrics address configured it keeps serving until ctx is done.
func Run(ctx context.Context, cfg Config, log logr.Logger, out io.Writer) error {
	// ---------------- Memory ----------------

	var alloc allocator = memory.NewHeap()
	if cfg.BudgetBytes > 0 {
		alloc = memory.NewBudget(cfg.BudgetBytes)
	}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	if err := metrics.RegisterMetrics(reg, "refdemo", alloc); err != nil {
		return errors.Wrap(err, "register metrics")
	}
	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics server exited")
			}
		}()
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	opts := []ownership.Option{
		ownership.WithAllocator(alloc),
		ownership.WithLogger(log.WithName("ownership")),
		ownership.WithIDs(sequence.New(0)),
	}

	// ---------------- Events ----------------

	if cfg.Kafka.Enabled() {
		pub, err := newPublisher(cfg.Kafka, log.WithName("kafka"))
		if err != nil {
			return err
		}
		b := broadcaster.New(pub, broadcaster.Config{Log: log.WithName("broadcaster")})
		opts = append(opts, ownership.WithObserver(b))

		bctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			b.Run(bctx)
			close(done)
		}()
		defer func() {
			cancel()
			<-done
			if err := b.Close(); err != nil {
				log.Error(err, "close publisher")
			}
		}()
	}

	// ---------------- Scenarios ----------------

	if err := runScenarios(out, cfg.Objects, opts); err != nil {
		return err
	}

	st := alloc.Stats()
	fmt.Fprintf(out, "allocator: allocs=%d frees=%d failures=%d live_bytes=%d\n",
		st.Allocs, st.Frees, st.Failures, st.LiveBytes)

	if srv == nil {
		return nil
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPublisher(cfg KafkaConfig, log logr.Logger) (broadcaster.Publisher, error) {
	switch cfg.Client {
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic, log)
	default:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	}
}
