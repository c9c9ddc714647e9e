package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Manager owns the cron engine and the background jobs it drives.
type Manager struct {
	engine        *cron.Cron
	missedCallJob *MissedCallJob
}

func NewManager(missedCallJob *MissedCallJob) *Manager {
	return &Manager{
		engine:        cron.New(cron.WithSeconds()),
		missedCallJob: missedCallJob,
	}
}

// RegisterJobs wires every job to its schedule. The missed-call sweep
// runs often; the ring timeout itself bounds how stale a call can get.
func (m *Manager) RegisterJobs() error {
	if _, err := m.engine.AddJob("*/10 * * * * *", m.missedCallJob); err != nil {
		return err
	}
	return nil
}

func (m *Manager) Start() {
	log.Info().Msg("cron engine started")
	m.engine.Start()
}

func (m *Manager) Stop() {
	log.Info().Msg("cron engine stopped")
	m.engine.Stop()
}
