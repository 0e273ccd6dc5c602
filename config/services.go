package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeWhatsAppWorker runs the whatsapp delivery worker.
	ServiceModeWhatsAppWorker ServiceMode = "whatsapp-worker"
	// ServiceModeEmailWorker runs the email delivery worker.
	ServiceModeEmailWorker ServiceMode = "email-worker"
	// ServiceModeSMSWorker runs the sms delivery worker.
	ServiceModeSMSWorker ServiceMode = "sms-worker"
	// ServiceModeReaper runs claim recovery and queue gauges.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeMetrics serves /metrics and /healthz.
	ServiceModeMetrics ServiceMode = "metrics"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeWhatsAppWorker,
		ServiceModeEmailWorker,
		ServiceModeSMSWorker,
		ServiceModeReaper,
		ServiceModeMetrics,
	}
}

// WorkerService returns the service mode that runs the worker for ch.
func WorkerService(ch model.Channel) ServiceMode {
	return ServiceMode(string(ch) + "-worker")
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	valid := ValidServiceModes()
	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.ToLower(strings.TrimSpace(part))
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		known := false
		for _, v := range valid {
			if v == mode {
				known = true
				break
			}
		}
		if !known {
			names := make([]string, len(valid))
			for i, v := range valid {
				names[i] = string(v)
			}
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", serviceName, strings.Join(names, ", "))
		}
		services[mode] = true
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReaperConfig contains claim recovery configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// BatchSize is the maximum number of claims released per statement.
	// Batching prevents long locks on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
