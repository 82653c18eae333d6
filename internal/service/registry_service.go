package service

import (
	"context"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/registry"
	"github.com/rs/zerolog"
)

// RegistryService publishes exam names and anchors each registration on the ledger.
type RegistryService struct {
	registry *registry.Registry
	ledger   ledger.Store
	log      zerolog.Logger
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(reg *registry.Registry, ledgerStore ledger.Store, log zerolog.Logger) *RegistryService {
	return &RegistryService{
		registry: reg,
		ledger:   ledgerStore,
		log:      log.With().Str("component", "registry_service").Logger(),
	}
}

// Register claims a name for an exam, writes an exam object to the ledger and
// records the object id on the entry.
func (s *RegistryService) Register(ctx context.Context, req *model.RegisterExamRequest) (*registry.Entry, error) {
	entry, err := s.registry.Register(ctx, req.ExamName, req.ExamID, req.ExamFee, req.Metadata)
	if err != nil {
		return nil, err
	}

	obj, err := s.ledger.WriteObject(ctx, ledger.KindExam, entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	metrics.LedgerWrites.WithLabelValues(string(ledger.KindExam)).Inc()

	entry, err = s.registry.SetMetadata(ctx, entry.Name, obj.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("record ledger object: %w", err)
	}

	s.log.Info().Str("name", entry.Name).Str("exam_id", entry.ExamID).Str("ledger_object_id", obj.ID).Msg("Exam registered")
	return entry, nil
}

// Lookup resolves a registered name.
func (s *RegistryService) Lookup(ctx context.Context, name string) (*registry.Entry, error) {
	return s.registry.Lookup(ctx, name)
}

// Search lists registered exams matching query; an empty query lists all.
func (s *RegistryService) Search(ctx context.Context, query string) ([]registry.Entry, error) {
	return s.registry.Search(ctx, query)
}
