package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	purgeSchedule        = "@hourly"
	limiterSweepSchedule = "@every 1m"
	limiterMaxIdle       = 3 * time.Minute
	jobTimeout           = 5 * time.Minute
)

type rebuildJob struct {
	app *application
}

func (j rebuildJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := j.app.contentManager.RebuildAll(ctx)
	if err != nil {
		j.app.logger.Error("scheduled rebuild failed", slog.String("error", err.Error()))
		return
	}

	j.app.logger.Info("scheduled rebuild finished",
		slog.Int("posts", report.Index.TotalPosts),
		slog.Int("failed", len(report.Failures)),
		slog.Duration("duration", report.Duration))
}

// purgeJob drops rate limit counters older than two windows.
type purgeJob struct {
	app *application
}

func (j purgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	before := time.Now().Add(-2 * j.app.commentService.RateLimitWindow())
	if _, err := j.app.commentService.PurgeRateLimits(ctx, before); err != nil {
		j.app.logger.Error("rate limit purge failed", slog.String("error", err.Error()))
	}
}

type limiterSweepJob struct {
	app *application
}

func (j limiterSweepJob) Run() {
	if j.app.limiter == nil {
		return
	}
	j.app.limiter.sweep(limiterMaxIdle)
}

type scheduler struct {
	engine *cron.Cron
	logger *slog.Logger
}

func (app *application) newScheduler() (*scheduler, error) {
	engine := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	jobs := []struct {
		spec string
		job  cron.Job
	}{
		{spec: app.config.Content.RebuildSchedule, job: rebuildJob{app: app}},
		{spec: purgeSchedule, job: purgeJob{app: app}},
		{spec: limiterSweepSchedule, job: limiterSweepJob{app: app}},
	}

	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := engine.AddJob(j.spec, j.job); err != nil {
			return nil, err
		}
	}

	return &scheduler{engine: engine, logger: app.logger}, nil
}

func (s *scheduler) Start() {
	s.logger.Info("starting scheduler", slog.Int("jobs", len(s.engine.Entries())))
	s.engine.Start()
}

func (s *scheduler) Stop() {
	<-s.engine.Stop().Done()
	s.logger.Info("stopped scheduler")
}
