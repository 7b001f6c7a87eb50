// Package store holds the agent's in-memory state: bounded measurement
// history, the device cache, the model catalog, test settings and the
// results archive. Nothing here is persisted; the engine is restartable
// from scratch by design.
package store

// Config sizes the bounded buffers.
type Config struct {
	PhaseCapacity   int
	MergedCapacity  int
	ResultsCapacity int
}

func DefaultConfig() Config {
	return Config{
		PhaseCapacity:   100,
		MergedCapacity:  300,
		ResultsCapacity: 50,
	}
}

func (c Config) normalized() Config {
	if c.PhaseCapacity <= 0 {
		c.PhaseCapacity = 100
	}
	if c.MergedCapacity <= 0 {
		c.MergedCapacity = 300
	}
	if c.ResultsCapacity <= 0 {
		c.ResultsCapacity = 50
	}
	return c
}

// Store provides access to all in-memory repositories.
type Store struct {
	history  *HistoryStore
	devices  *DeviceStore
	models   *ModelStore
	settings *SettingsStore
	results  *ResultsStore
}

func NewStore(cfg Config) (*Store, error) {
	cfg = cfg.normalized()

	modelStore, err := NewModelStore()
	if err != nil {
		return nil, err
	}

	return &Store{
		history:  NewHistoryStore(cfg.PhaseCapacity, cfg.MergedCapacity),
		devices:  NewDeviceStore(),
		models:   modelStore,
		settings: NewSettingsStore(),
		results:  NewResultsStore(cfg.ResultsCapacity),
	}, nil
}

func (s *Store) History() *HistoryStore {
	return s.history
}

func (s *Store) Devices() *DeviceStore {
	return s.devices
}

func (s *Store) Models() *ModelStore {
	return s.models
}

func (s *Store) Settings() *SettingsStore {
	return s.settings
}

func (s *Store) Results() *ResultsStore {
	return s.results
}
