package command

import (
	"context"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gitlab.com/arbfn-2025.net/internal/core/services/worker"
	logger2 "gitlab.com/arbfn-2025.net/internal/global/logger"
	"gitlab.com/arbfn-2025.net/internal/tcp"
)

type workerOptions struct {
	addr       string
	workers    int
	atoms      int
	steps      int
	seed       int64
	maxDelay   time.Duration
	ackTimeout time.Duration
}

// NewWorkerCommand runs one or more simulated workers against a master
func NewWorkerCommand(root *rootOptions) *cobra.Command {
	opts := &workerOptions{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run simulated workers that exchange forces with a master",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorkers(ctx, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:9000", "master address")
	cmd.Flags().IntVarP(&opts.workers, "workers", "n", 1, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.atoms, "atoms", 16, "atoms per worker")
	cmd.Flags().IntVar(&opts.steps, "steps", 100, "timesteps per worker")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed; 0 seeds from the clock")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", worker.DefaultMaxDelay, "wait bound for each reply packet")
	cmd.Flags().DurationVar(&opts.ackTimeout, "ack-timeout", worker.DefaultAckTimeout, "wait bound for the registration ack")
	return cmd
}

func runWorkers(ctx context.Context, root *rootOptions, opts *workerOptions) error {
	logger := logger2.Logger
	partition := root.cfg.Transport.Partition
	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.workers; i++ {
		rng := rand.New(rand.NewSource(seed + int64(i)))
		g.Go(func() error {
			link, err := tcp.Dial(gctx, opts.addr, partition)
			if err != nil {
				return err
			}
			defer link.Close()

			w := worker.NewWorker(link, logger,
				worker.WithMaxDelay(opts.maxDelay), worker.WithAckTimeout(opts.ackTimeout))
			if err := w.Simulate(gctx, opts.atoms, opts.steps, rng); err != nil {
				return err
			}
			logger.Info("Worker finished", "steps", opts.steps, "waits", w.Waits())
			return nil
		})
	}
	return g.Wait()
}
