package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/bootstrap"
	"github.com/academic360/notifier/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger(slog.LevelInfo)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"enqueue": {
			name:        "enqueue",
			description: "Queue a notification with its content values",
			run:         runEnqueue,
		},
		"stats": {
			name:        "stats",
			description: "Show job counts per channel and status",
			run:         runStats,
		},
		"release-claims": {
			name:        "release-claims",
			description: "Recover expired claims, spending one retry each (one reaper pass)",
			run:         runReleaseClaims,
		},
		"drain": {
			name:        "drain",
			description: "Claim and deliver due jobs for a channel once, then exit",
			run:         runDrain,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: notifier-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type enqueueOptions struct {
	Channel    model.Channel
	UserID     int64
	TemplateID int64
	Payload    string
	Contents   []model.ContentInput
}

type statsOptions struct {
	Channels []model.Channel
	JSON     bool
}

type releaseOptions struct {
	BatchSize int
}

type drainOptions struct {
	Channel model.Channel
	Max     int
	Yes     bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts    enqueueOptions
		channel string
	)
	fs.StringVar(&channel, "channel", string(model.ChannelWhatsApp), "Delivery channel (whatsapp, email, sms)")
	fs.Int64Var(&opts.UserID, "user", 0, "Recipient user id")
	fs.Int64Var(&opts.TemplateID, "template", 0, "Template id (0 uses the payload or fallback template)")
	fs.StringVar(&opts.Payload, "payload", "", "Channel payload as JSON")
	fs.Func("content", "Content value as field_id=value (repeatable)", func(v string) error {
		c, err := parseContent(v)
		if err != nil {
			return err
		}
		opts.Contents = append(opts.Contents, c)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}
	if err := opts.Channel.UnmarshalText([]byte(channel)); err != nil {
		return enqueueOptions{}, fmt.Errorf("--channel: %w", err)
	}
	if opts.UserID <= 0 {
		return enqueueOptions{}, errors.New("--user is required")
	}
	if opts.TemplateID < 0 {
		return enqueueOptions{}, errors.New("--template must not be negative")
	}
	return opts, nil
}

func parseContent(v string) (model.ContentInput, error) {
	id, value, ok := strings.Cut(v, "=")
	if !ok {
		return model.ContentInput{}, fmt.Errorf("content %q must be field_id=value", v)
	}
	fieldID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || fieldID <= 0 {
		return model.ContentInput{}, fmt.Errorf("content %q has an invalid field id", v)
	}
	return model.ContentInput{FieldID: fieldID, Content: value}, nil
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts    statsOptions
		channel string
	)
	fs.StringVar(&channel, "channel", "", "Restrict to one channel (default all)")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}

	if strings.TrimSpace(channel) == "" {
		opts.Channels = model.Channels()
		return opts, nil
	}
	var ch model.Channel
	if err := ch.UnmarshalText([]byte(channel)); err != nil {
		return statsOptions{}, err
	}
	opts.Channels = []model.Channel{ch}
	return opts, nil
}

func parseReleaseFlags(args []string, defaultBatch int) (releaseOptions, error) {
	fs := flag.NewFlagSet("release-claims", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := releaseOptions{BatchSize: defaultBatch}
	fs.IntVar(&opts.BatchSize, "batch", defaultBatch, "Maximum claims released per statement")

	if err := fs.Parse(args); err != nil {
		return releaseOptions{}, err
	}
	if opts.BatchSize <= 0 {
		return releaseOptions{}, errors.New("--batch must be greater than zero")
	}
	return opts, nil
}

func parseDrainFlags(args []string) (drainOptions, error) {
	fs := flag.NewFlagSet("drain", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts    drainOptions
		channel string
	)
	fs.StringVar(&channel, "channel", "", "Channel to drain (required)")
	fs.IntVar(&opts.Max, "max", 0, "Stop after claiming this many jobs (0 for no limit)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return drainOptions{}, err
	}
	if err := opts.Channel.UnmarshalText([]byte(channel)); err != nil {
		return drainOptions{}, fmt.Errorf("--channel: %w", err)
	}
	if opts.Max < 0 {
		return drainOptions{}, errors.New("--max must not be negative")
	}
	return opts, nil
}
