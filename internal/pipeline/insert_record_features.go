package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/handlers"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// featureTableNamePattern guards against SQL injection through a hook's
// manifest name, which feeds directly into an identifier position no
// placeholder can cover. Postgres unquoted identifiers don't allow dashes,
// so hook names (which do, e.g. "schema-check") are normalized first.
var featureTableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func featureTableName(hookName string) (string, error) {
	name := "hook_features_" + strings.ReplaceAll(hookName, "-", "_")
	if !featureTableNamePattern.MatchString(name) {
		return "", fmt.Errorf("insert record features: unsafe hook name %q", hookName)
	}
	return name, nil
}

// insertRecordFeatures reads back each hook's extracted feature row (written
// to disk by the hook container during validation) and inserts it into that
// hook's feature table, keyed by record_srn. A hook that produced no feature
// file is skipped: not every hook extracts features.
type insertRecordFeatures struct {
	scope handlers.Scope
	deps  Dependencies
}

func insertRecordFeaturesRegistration(deps Dependencies) handlers.Registration {
	return handlers.Registration{
		Config: handlers.Config{
			EventType:     EventRecordPublished,
			ConsumerGroup: "InsertRecordFeatures",
			BatchSize:     1,
			BatchTimeout:  30 * time.Second,
			PollInterval:  2 * time.Second,
			MaxRetries:    5,
			ClaimTimeout:  60 * time.Second,
		},
		Auth: handlers.AtLeast(handlers.RoleAdmin),
		New: func(scope handlers.Scope) handlers.Handler {
			return &insertRecordFeatures{scope: scope, deps: deps}
		},
	}
}

func (h *insertRecordFeatures) Handle(ctx context.Context, ev outbox.Event) handlers.Outcome {
	var payload RecordPublishedPayload
	if err := decodePayload(ev, &payload); err != nil {
		return handlers.OutcomeFail(err)
	}

	depositionSRN, err := srn.ParseAs(payload.DepositionSRN, srn.TypeDeposition)
	if err != nil {
		return handlers.OutcomeFail(err)
	}

	for _, snap := range payload.Hooks {
		if len(snap.FeatureSchema.Columns) == 0 {
			continue
		}
		path := h.deps.Files.HookFeaturesPath(depositionSRN, snap.Name)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return handlers.OutcomeFail(fmt.Errorf("insert record features: read %s: %w", path, err))
		}

		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return handlers.OutcomeFail(fmt.Errorf("insert record features: decode %s: %w", path, err))
		}

		if err := h.insertRow(ctx, snap.Name, snap.FeatureSchema.Columns, payload.RecordSRN, row); err != nil {
			return handlers.OutcomeFail(err)
		}
	}
	return handlers.OutcomeOk()
}

// insertRow upserts one feature row, built from the hook's declared columns
// plus record_srn. Columns absent from the decoded row are inserted NULL.
func (h *insertRecordFeatures) insertRow(ctx context.Context, hookName string, columns []hook.Column, recordSRN string, row map[string]any) error {
	table, err := featureTableName(hookName)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(columns)+1)
	placeholders := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)

	names = append(names, "record_srn")
	placeholders = append(placeholders, "$1")
	args = append(args, recordSRN)

	for _, col := range columns {
		if !featureTableNamePattern.MatchString(col.Name) {
			return fmt.Errorf("insert record features: unsafe column name %q", col.Name)
		}
		names = append(names, col.Name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, row[col.Name])
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (record_srn) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "), conflictAssignments(names[1:]),
	)
	if _, err := h.scope.Exec().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record features: insert into %s: %w", table, err)
	}
	return nil
}

func conflictAssignments(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return strings.Join(parts, ", ")
}
