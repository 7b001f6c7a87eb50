package store

import (
	"sync"

	"github.com/testbench/inspection-agent/internal/models"
)

// defaultModelID is the model used when a barcode arrives before the
// operator selected one explicitly.
const defaultModelID = "power-3p"

// SettingsStore holds the test settings and the operator's selected model.
type SettingsStore struct {
	mu       sync.RWMutex
	settings models.TestSettings
	modelID  string
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		settings: models.DefaultTestSettings(),
		modelID:  defaultModelID,
	}
}

func (s *SettingsStore) Get() models.TestSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *SettingsStore) Update(settings models.TestSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *SettingsStore) SelectedModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelID
}

// SelectModel records the operator's model choice. Existence is checked by
// the caller against the model catalog.
func (s *SettingsStore) SelectModel(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = modelID
}
