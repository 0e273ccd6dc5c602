package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/adapters/jobrunner"
	"github.com/academic360/notifier/internal/adapters/reaper"
	"github.com/academic360/notifier/internal/bootstrap"
	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/service"
)

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	return withDatabase(cmdCtx, func(db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDatabase(cmdCtx, func(db *sql.DB) error {
		svc, svcErr := service.NewEnqueueService(service.EnqueueServiceOptions{
			Enqueuer: data.NewEnqueueRepo(db, clock.Real{}),
			Logger:   cmdCtx.Logger,
		})
		if svcErr != nil {
			return svcErr
		}

		res, enqErr := svc.Enqueue(ctx, opts.request())
		if enqErr != nil {
			return fmt.Errorf("enqueue: %w", enqErr)
		}
		return writeJSON(cmdCtx, res)
	})
}

func (o enqueueOptions) request() *model.EnqueueRequest {
	req := &model.EnqueueRequest{
		UserID:   o.UserID,
		Channel:  o.Channel,
		Contents: o.Contents,
	}
	if o.TemplateID > 0 {
		id := o.TemplateID
		req.TemplateID = &id
	}
	if p := strings.TrimSpace(o.Payload); p != "" {
		req.Payload = json.RawMessage(p)
	}
	return req
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDatabase(cmdCtx, func(db *sql.DB) error {
		stats, statsErr := collectStats(ctx, data.NewJobQueueRepo(db, data.JobQueueRepoConfig{Logger: cmdCtx.Logger}), opts.Channels)
		if statsErr != nil {
			return statsErr
		}
		if opts.JSON {
			return writeJSON(cmdCtx, stats)
		}
		return printStats(cmdCtx, stats)
	})
}

type statsReader interface {
	Stats(ctx context.Context, channel model.Channel) (*model.QueueStats, error)
}

func collectStats(ctx context.Context, repo statsReader, channels []model.Channel) ([]*model.QueueStats, error) {
	out := make([]*model.QueueStats, 0, len(channels))
	for _, ch := range channels {
		s, err := repo.Stats(ctx, ch)
		if err != nil {
			return nil, fmt.Errorf("%s stats: %w", ch, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func printStats(cmdCtx *commandContext, stats []*model.QueueStats) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "CHANNEL\tPENDING\tCLAIMED\tDONE\tFAILED\tTOTAL"); err != nil {
		return err
	}
	for _, s := range stats {
		if err := writef(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Channel, s.Pending, s.Claimed, s.Done, s.Failed, s.Total()); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runReleaseClaims(cmdCtx *commandContext, args []string) error {
	opts, err := parseReleaseFlags(args, cmdCtx.Config.Reaper.BatchSize)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDatabase(cmdCtx, func(db *sql.DB) error {
		reaperCfg := cmdCtx.Config.Reaper
		reaperCfg.BatchSize = opts.BatchSize

		runner, runnerErr := reaper.NewRunner(reaper.RunnerOptions{
			DB:       db,
			Config:   reaperCfg,
			Logger:   cmdCtx.Logger,
			Channels: model.Channels(),
		})
		if runnerErr != nil {
			return fmt.Errorf("create reaper runner: %w", runnerErr)
		}
		if passErr := runner.RunOnce(ctx); passErr != nil {
			return fmt.Errorf("release claims: %w", passErr)
		}

		stats, statsErr := collectStats(ctx, data.NewJobQueueRepo(db, data.JobQueueRepoConfig{Logger: cmdCtx.Logger}), model.Channels())
		if statsErr != nil {
			return statsErr
		}
		return printStats(cmdCtx, stats)
	})
}

func runDrain(cmdCtx *commandContext, args []string) error {
	opts, err := parseDrainFlags(args)
	if err != nil {
		return err
	}

	cfg := drainConfig(cmdCtx.Config, opts.Channel)
	if validateErr := cfg.Validate(); validateErr != nil {
		return fmt.Errorf("invalid %s configuration: %w", opts.Channel, validateErr)
	}

	if !opts.Yes {
		if confirmErr := confirm(cmdCtx, fmt.Sprintf(
			"About to deliver every due %s job in %s.", opts.Channel, cfg.Environment)); confirmErr != nil {
			return confirmErr
		}
	}

	return withDatabase(cmdCtx, func(db *sql.DB) error {
		redisClient := bootstrap.ConnectTemplateCache(bootstrap.DatabaseConfig{
			RedisConfig: cfg.Redis,
			Logger:      cmdCtx.Logger,
		}, cfg.Cache)
		if redisClient != nil {
			defer func() {
				if closeErr := redisClient.Close(); closeErr != nil {
					cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
				}
			}()
		}

		services := bootstrap.NewServices(&bootstrap.ServiceDeps{
			Config:      &cfg,
			DB:          db,
			RedisClient: redisClient,
			Logger:      cmdCtx.Logger,
		})

		runner, runnerErr := jobrunner.NewRunner(cmdCtx.Ctx, jobrunner.RunnerOptions{
			DB:              db,
			Channel:         opts.Channel,
			Config:          &cfg,
			Logger:          cmdCtx.Logger,
			Cache:           services.Cache,
			FailureNotifier: services.Observability.FailureNotifier,
		})
		if runnerErr != nil {
			return fmt.Errorf("create %s runner: %w", opts.Channel, runnerErr)
		}

		summary, drainErr := runner.Drain(cmdCtx.Ctx, opts.Max)
		if drainErr != nil {
			return fmt.Errorf("drain %s: %w", opts.Channel, drainErr)
		}
		return writeJSON(cmdCtx, summary)
	})
}

// drainConfig scopes validation to the drained channel's worker.
func drainConfig(cfg config.AppConfig, ch model.Channel) config.AppConfig {
	cfg.Services = string(config.WorkerService(ch))
	return cfg
}

func withDatabase(cmdCtx *commandContext, fn func(db *sql.DB) error) error {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()
	return fn(db)
}
