package routing

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Maintenance runs periodic routing upkeep: model re-discovery on a cron
// schedule, so roster drift in gateway configuration is picked up without
// an operator-triggered rediscover.
type Maintenance struct {
	cron *cron.Cron
}

// StartMaintenance schedules Rediscover on the given cron spec (standard
// five-field syntax, e.g. "*/30 * * * *"). An empty spec disables upkeep
// and returns a nil Maintenance.
func StartMaintenance(svc *Service, spec string) (*Maintenance, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := svc.Rediscover(context.Background()); err != nil {
			svc.logger.Warn("scheduled re-discovery failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("routing maintenance: invalid schedule %q: %w", spec, err)
	}
	c.Start()
	return &Maintenance{cron: c}, nil
}

// Stop halts the schedule, waiting for a running job to finish.
func (m *Maintenance) Stop() {
	if m == nil {
		return
	}
	<-m.cron.Stop().Done()
}
