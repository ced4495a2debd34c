package main

import (
	"context"
	"os"
	"time"

	"tasksync/internal/queue"
	"tasksync/internal/scheduler"
	"tasksync/internal/syncer"
	"tasksync/internal/worker"
	"tasksync/pkg/logger"

	"github.com/spf13/cobra"
)

const probePoll = 5 * time.Second

// background is the sync machinery shared by the daemon and the shell: the
// serialized job queue, the scheduler feeding it and, with Kafka configured,
// the durable request consumer.
type background struct {
	jobs  *queue.JobQueue
	sched *scheduler.Scheduler
	done  chan struct{}
	pub   *queue.KafkaPublisher
}

// startBackground starts the job queue consumer for userID. onSync is called
// after each background cycle, in process or from Kafka.
func startBackground(ctx context.Context, a *app, userID string, onSync func(string, syncer.Result, error)) *background {
	b := &background{jobs: queue.NewJobQueue(), done: make(chan struct{})}
	inline := &scheduler.Inline{
		Syncer:     a.coord,
		Probe:      a.probe,
		MaxWait:    time.Minute,
		Poll:       probePoll,
		OnComplete: onSync,
	}

	var deferred scheduler.Deferred = inline
	if len(a.cfg.KafkaBrokers) > 0 {
		queue.EnsureTopic(ctx, a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.cfg.KafkaPartitions)
		pub, err := queue.NewKafkaPublisher(ctx, a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		if err != nil {
			logger.Warn(ctx, "Kafka unavailable, syncing in process", "error", err)
		} else {
			b.pub = pub
			deferred = pub
			device, _ := os.Hostname()
			go worker.Run(ctx, worker.Config{
				Brokers: a.cfg.KafkaBrokers,
				Topic:   a.cfg.KafkaTopic,
				GroupID: worker.GroupID(userID, device),
			}, &worker.Handler{
				Syncer:     a.coord,
				Probe:      a.probe,
				Auth:       a.auth,
				Poll:       probePoll,
				OnComplete: onSync,
			})
		}
	}

	b.sched = scheduler.New(b.jobs, deferred, a.auth)
	go func() {
		b.jobs.Run(ctx)
		close(b.done)
	}()
	return b
}

// stop lets queued jobs finish, then closes the publisher.
func (b *background) stop() {
	b.jobs.Close()
	<-b.done
	if b.pub != nil {
		_ = b.pub.Close()
	}
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Sync in the background until interrupted",
	Long: `Run sync cycles on start, then every SYNC_INTERVAL_SEC seconds while the
network is reachable.

With KAFKA_BROKERS set, sync requests go through the Kafka topic so a
request made while offline survives a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		userID, err := a.user()
		if err != nil {
			return err
		}
		ctx = logger.WithUser(ctx, userID)

		bg := startBackground(ctx, a, userID, func(_ string, res syncer.Result, err error) {
			if err != nil {
				logger.Error(ctx, "Sync cycle failed", "error", err)
				return
			}
			logger.Info(ctx, "Sync cycle finished", "pushed", res.Pushed, "pulled", res.Pulled, "skipped", res.Skipped)
		})
		bg.sched.OnStart(ctx)
		go bg.sched.RunPeriodic(ctx, a.cfg.SyncInterval)

		logger.Info(ctx, "Daemon started", "interval", a.cfg.SyncInterval, "remote", a.cfg.RemoteMode)
		<-ctx.Done()
		bg.stop()
		logger.Info(ctx, "Daemon stopped")
		return nil
	},
}
