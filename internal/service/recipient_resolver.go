package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/model"
)

// DefaultStagingRecipientLimit caps the staging fan-out.
const DefaultStagingRecipientLimit = 500

// ErrNoDeveloperAddress is returned when routing needs a developer address the
// channel does not have configured.
var ErrNoDeveloperAddress = errors.New("no developer address configured")

// RecipientRoute records why an address was chosen.
type RecipientRoute string

// Recipient routes.
const (
	RouteDeveloper RecipientRoute = "developer"
	RouteStaff     RecipientRoute = "staff"
	RouteUser      RecipientRoute = "user"
)

// Recipient is one resolved delivery address.
type Recipient struct {
	Address string
	Route   RecipientRoute
	// UserID is the contact behind the address, zero for the developer fallback.
	UserID int64
}

// RecipientResolverOptions groups dependencies for RecipientResolver.
type RecipientResolverOptions struct {
	Directory   core.ContactDirectory // Required: contact lookup
	Environment model.Environment     // Required: routing mode
	// DeveloperAddresses holds the fallback address per channel.
	DeveloperAddresses map[model.Channel]string
	// HonorDevOnly routes payloads flagged dev_only to the developer in every environment.
	HonorDevOnly bool
	// StagingLimit caps the staff fan-out. Defaults to DefaultStagingRecipientLimit.
	StagingLimit int
	Logger       *slog.Logger // Optional: structured logger
}

// RecipientResolver picks delivery addresses according to the runtime environment.
type RecipientResolver struct {
	directory    core.ContactDirectory
	env          model.Environment
	developer    map[model.Channel]string
	honorDevOnly bool
	stagingLimit int
	logger       *slog.Logger
}

// NewRecipientResolver constructs a RecipientResolver.
func NewRecipientResolver(opts RecipientResolverOptions) (*RecipientResolver, error) {
	if opts.Directory == nil {
		return nil, errors.New("ContactDirectory is required")
	}
	if !opts.Environment.Valid() {
		return nil, fmt.Errorf("invalid environment %q", opts.Environment)
	}

	limit := opts.StagingLimit
	if limit <= 0 {
		limit = DefaultStagingRecipientLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	developer := make(map[model.Channel]string, len(opts.DeveloperAddresses))
	for ch, addr := range opts.DeveloperAddresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			developer[ch] = addr
		}
	}

	return &RecipientResolver{
		directory:    opts.Directory,
		env:          opts.Environment,
		developer:    developer,
		honorDevOnly: opts.HonorDevOnly,
		stagingLimit: limit,
		logger:       logger.With("component", "recipient_resolver", "environment", string(opts.Environment)),
	}, nil
}

// Resolve returns a non-empty, ordered list of recipients for j.
func (r *RecipientResolver) Resolve(ctx context.Context, j *model.Job) ([]Recipient, error) {
	channel := j.Channel

	if r.honorDevOnly && j.Payload.DevOnly {
		return r.developerOnly(channel)
	}

	switch r.env {
	case model.EnvDevelopment:
		return r.developerOnly(channel)
	case model.EnvStaging:
		return r.staging(ctx, channel)
	case model.EnvProduction:
		return r.production(ctx, channel, j.Notification.UserID)
	}
	return nil, fmt.Errorf("invalid environment %q", r.env)
}

func (r *RecipientResolver) developerOnly(channel model.Channel) ([]Recipient, error) {
	addr, ok := r.developer[channel]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoDeveloperAddress, channel)
	}
	return []Recipient{{Address: addr, Route: RouteDeveloper}}, nil
}

func (r *RecipientResolver) staging(ctx context.Context, channel model.Channel) ([]Recipient, error) {
	contacts, err := r.directory.ListStagingRecipients(ctx, channel, r.stagingLimit)
	if err != nil {
		return nil, fmt.Errorf("list staging recipients: %w", err)
	}

	seen := make(map[string]struct{}, len(contacts))
	out := make([]Recipient, 0, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		if !c.EligibleForStaging() {
			continue
		}
		addr := strings.TrimSpace(c.Address())
		if addr == "" {
			r.logger.DebugContext(ctx, "skipping staff contact without address", "user_id", c.UserID)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, Recipient{Address: addr, Route: RouteStaff, UserID: c.UserID})
	}

	if len(out) == 0 {
		r.logger.DebugContext(ctx, "no staging recipients, using developer address", "channel", channel)
		return r.developerOnly(channel)
	}
	return out, nil
}

func (r *RecipientResolver) production(ctx context.Context, channel model.Channel, userID int64) ([]Recipient, error) {
	contact, err := r.directory.Lookup(ctx, channel, userID)
	switch {
	case errors.Is(err, data.ErrContactNotFound):
		r.logger.WarnContext(ctx, "recipient not in directory, using developer address", "user_id", userID)
		return r.developerOnly(channel)
	case err != nil:
		return nil, fmt.Errorf("lookup contact %d: %w", userID, err)
	}

	if addr := strings.TrimSpace(contact.Address()); addr != "" {
		return []Recipient{{Address: addr, Route: RouteUser, UserID: contact.UserID}}, nil
	}
	r.logger.WarnContext(ctx, "recipient has no address, using developer address", "user_id", userID, "channel", channel)
	return r.developerOnly(channel)
}
