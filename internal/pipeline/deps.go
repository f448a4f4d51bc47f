package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/ports"
	"github.com/opensciencearchive/server-sub000/internal/store"
)

// Dependencies bundles everything a handler constructor needs beyond the
// per-poll-cycle Scope: the aggregate stores and the external ports. Built
// once at startup and closed over by every Registration's New function.
type Dependencies struct {
	Depositions  store.DepositionRepository
	Conventions  store.ConventionRepository
	Records      store.RecordRepository
	Files        ports.FileStorage
	Indexes      *ports.IndexRegistry
	SourceRunner ports.OCIRunner
	HookRunner   ports.HookRunner
	Clock        func() time.Time
}

func decodePayload(ev outbox.Event, v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("pipeline: decode %s payload: %w", ev.EventType, err)
	}
	return nil
}

func (d Dependencies) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}

// BuildRegistrations assembles the full deposition-to-index event chain as a
// handlers.Registration list, ready to pass to worker.BuildPool.
func BuildRegistrations(deps Dependencies) []handlers.Registration {
	return []handlers.Registration{
		pullFromSourceRegistration(deps),
		createDepositionFromSourceRegistration(deps),
		validateDepositionRegistration(deps),
		autoApproveCurationRegistration(deps),
		convertDepositionToRecordRegistration(deps),
		fanOutToIndexBackendsRegistration(deps),
		flushIndexesOnSourceCompleteRegistration(deps),
		insertRecordFeaturesRegistration(deps),
		vectorIndexHandlerRegistration(deps),
		keywordIndexHandlerRegistration(deps),
		returnToDraftRegistration(deps),
		createFeatureTablesRegistration(deps),
		triggerInitialSourceRunRegistration(deps),
	}
}
