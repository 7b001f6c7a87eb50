package store

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// ModelStore is the inspection model catalog, seeded with the built-in
// models. Entries are validated before they are accepted.
type ModelStore struct {
	mu       sync.RWMutex
	models   map[string]models.InspectionModel
	order    []string
	validate *validator.Validate
}

func NewModelStore() (*ModelStore, error) {
	s := &ModelStore{
		models:   make(map[string]models.InspectionModel),
		validate: validator.New(),
	}
	for _, m := range models.BuiltinModels() {
		if err := s.Put(m); err != nil {
			return nil, fmt.Errorf("seeding builtin model %s: %w", m.ID, err)
		}
	}
	return s, nil
}

func (s *ModelStore) Get(id string) (models.InspectionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return models.InspectionModel{}, srvErrors.NewModelNotFoundError(id)
	}
	return m, nil
}

func (s *ModelStore) List() []models.InspectionModel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.InspectionModel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.models[id])
	}
	return out
}

func (s *ModelStore) Put(m models.InspectionModel) error {
	if err := s.validate.Struct(m); err != nil {
		return fmt.Errorf("invalid inspection model: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[m.ID]; !ok {
		s.order = append(s.order, m.ID)
	}
	s.models[m.ID] = m
	return nil
}
