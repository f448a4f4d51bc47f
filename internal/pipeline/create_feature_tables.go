package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// createFeatureTables issues the CREATE TABLE DDL for every hook a newly
// registered convention declares. Run inside the worker's unit-of-work
// transaction: a failing DDL statement rolls the whole delivery back, so
// ConventionReady is never emitted for a convention with a broken feature
// schema, and the delivery simply retries.
type createFeatureTables struct {
	scope handlers.Scope
	deps  Dependencies
}

func createFeatureTablesRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventConventionRegistered,
			ConsumerGroup: "CreateFeatureTables",
			BatchSize:     1,
			BatchTimeout:  30 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    3,
			ClaimTimeout:  60 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &createFeatureTables{scope: scope, deps: deps}
		},
	}
}

func (h *createFeatureTables) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload ConventionRegisteredPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	conventionSRN, err := srn.ParseAs(payload.ConventionSRN, srn.TypeConvention)
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	convention, err := h.deps.Conventions.Get(ctx, h.scope.Exec(), conventionSRN)
	if err != nil {
		return handlers.OutcomeFail(fmt.Errorf("create feature tables: load convention: %w", err))
	}

	for _, def := range convention.Hooks {
		if len(def.Manifest.FeatureSchema.Columns) == 0 {
			continue
		}
		if err := h.createTable(ctx, def.Manifest.Name, def.Manifest.FeatureSchema.Columns); err != nil {
			return handlers.OutcomeFail(err)
		}
	}

	next, err := outbox.NewEvent(EventConventionReady, ConventionReadyPayload{ConventionSRN: payload.ConventionSRN})
	if err != nil {
		return handlers.OutcomeFail(err)
	}
	if err := h.scope.Outbox().Append(ctx, h.scope.Exec(), next, nil); err != nil {
		return handlers.OutcomeFail(err)
	}
	return handlers.OutcomeOk()
}

func (h *createFeatureTables) createTable(ctx context.Context, hookName string, columns []hook.Column) error {
	table, err := featureTableName(hookName)
	if err != nil {
		return err
	}

	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, "record_srn TEXT PRIMARY KEY")
	for _, col := range columns {
		if !featureTableNamePattern.MatchString(col.Name) {
			return fmt.Errorf("create feature tables: unsafe column name %q", col.Name)
		}
		sqlType := columnSQLType(col.Type)
		nullability := "NOT NULL"
		if col.Nullable {
			nullability = "NULL"
		}
		defs = append(defs, fmt.Sprintf("%s %s %s", col.Name, sqlType, nullability))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := h.scope.Exec().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create feature tables: create %s: %w", table, err)
	}
	return nil
}

func columnSQLType(t string) string {
	switch t {
	case "int", "integer":
		return "BIGINT"
	case "float", "double":
		return "DOUBLE PRECISION"
	case "bool", "boolean":
		return "BOOLEAN"
	case "vector":
		return "JSONB"
	default:
		return "TEXT"
	}
}
