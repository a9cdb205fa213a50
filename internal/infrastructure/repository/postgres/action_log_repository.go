package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const actionLogColumns = `id, module, action_type, automation_level, input, output, human_decision, modified_content,
	decided_by, tokens_used, latency_ms, provider, model, created_at, responded_at, decided_at`

// ActionLogRepository stores the action audit trail. The single-response
// and single-decision rules are enforced by conditional UPDATEs.
type ActionLogRepository struct {
	db *sql.DB
}

func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

func (r *ActionLogRepository) Create(ctx context.Context, entry *domain.ActionLogEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.HumanDecision == "" {
		entry.HumanDecision = domain.DecisionPending
	}
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return "", fmt.Errorf("marshal action input: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO action_logs (id, module, action_type, automation_level, input, human_decision, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		entry.ID, entry.Module, entry.ActionType, string(entry.AutomationLevel), inputJSON,
		string(entry.HumanDecision), entry.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert action log: %w", err)
	}
	return entry.ID, nil
}

func (r *ActionLogRepository) Update(ctx context.Context, id string, update domain.ActionLogUpdate) (*domain.ActionLogEntry, error) {
	switch {
	case update.Response != nil && update.Decision == nil:
		return r.recordResponse(ctx, id, update.Response)
	case update.Decision != nil && update.Response == nil:
		return r.recordDecision(ctx, id, update.Decision)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "update action log", fmt.Errorf("exactly one of response or decision is required"))
	}
}

func (r *ActionLogRepository) recordResponse(ctx context.Context, id string, patch *domain.ActionResponsePatch) (*domain.ActionLogEntry, error) {
	outputJSON, err := json.Marshal(patch.Output)
	if err != nil {
		return nil, fmt.Errorf("marshal action output: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE action_logs
SET output = $2, tokens_used = $3, latency_ms = $4, provider = $5, model = $6, responded_at = $7
WHERE id = $1 AND responded_at IS NULL
RETURNING `+actionLogColumns,
		id, outputJSON, patch.TokensUsed, patch.LatencyMs, nullString(patch.Provider), nullString(patch.Model), patch.RespondedAt,
	)
	entry, err := scanActionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.guardError(ctx, id, domain.ErrActionAlreadyResponded, "record response")
	}
	if err != nil {
		return nil, fmt.Errorf("update action response: %w", err)
	}
	return entry, nil
}

func (r *ActionLogRepository) recordDecision(ctx context.Context, id string, patch *domain.ActionDecisionPatch) (*domain.ActionLogEntry, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE action_logs
SET human_decision = $2, modified_content = $3, decided_by = $4, decided_at = $5
WHERE id = $1 AND human_decision = 'pending'
RETURNING `+actionLogColumns,
		id, string(patch.Decision), nullString(patch.ModifiedContent), nullString(patch.DecidedBy), patch.DecidedAt,
	)
	entry, err := scanActionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.guardError(ctx, id, domain.ErrDecisionAlreadyRecorded, "record decision")
	}
	if err != nil {
		return nil, fmt.Errorf("update action decision: %w", err)
	}
	return entry, nil
}

// guardError tells a missing entry apart from one whose guard already fired.
func (r *ActionLogRepository) guardError(ctx context.Context, id string, guard error, operation string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM action_logs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check action log: %w", err)
	}
	if !exists {
		return domain.WrapError(domain.ErrActionNotFound, operation, fmt.Errorf("id %s", id))
	}
	return domain.WrapError(guard, operation, fmt.Errorf("id %s", id))
}

func (r *ActionLogRepository) FindMany(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	add := func(column string, value string) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Module != "" {
		add("module", filter.Module)
	}
	if filter.ActionType != "" {
		add("action_type", filter.ActionType)
	}
	if filter.Decision != "" {
		add("human_decision", string(filter.Decision))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := "SELECT " + actionLogColumns + "\nFROM action_logs\n"
	if len(clauses) > 0 {
		query += "WHERE " + strings.Join(clauses, " AND ") + "\n"
	}
	query += "ORDER BY created_at DESC\nLIMIT $" + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list action logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ActionLogEntry, 0)
	for rows.Next() {
		entry, err := scanActionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action logs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActionLog(row rowScanner) (*domain.ActionLogEntry, error) {
	var (
		entry           domain.ActionLogEntry
		level, decision string
		inputRaw        []byte
		outputRaw       []byte
		modified        sql.NullString
		decidedBy       sql.NullString
		provider        sql.NullString
		model           sql.NullString
		respondedAt     sql.NullTime
		decidedAt       sql.NullTime
	)
	err := row.Scan(
		&entry.ID, &entry.Module, &entry.ActionType, &level, &inputRaw, &outputRaw, &decision, &modified,
		&decidedBy, &entry.TokensUsed, &entry.LatencyMs, &provider, &model, &entry.CreatedAt, &respondedAt, &decidedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.AutomationLevel = domain.AutomationLevel(level)
	entry.HumanDecision = domain.HumanDecision(decision)
	entry.ModifiedContent = modified.String
	entry.DecidedBy = decidedBy.String
	entry.Provider = provider.String
	entry.Model = model.String
	if len(inputRaw) > 0 {
		if err := json.Unmarshal(inputRaw, &entry.Input); err != nil {
			return nil, fmt.Errorf("unmarshal action input: %w", err)
		}
	}
	if len(outputRaw) > 0 {
		var output domain.ActionOutput
		if err := json.Unmarshal(outputRaw, &output); err != nil {
			return nil, fmt.Errorf("unmarshal action output: %w", err)
		}
		entry.Output = &output
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		entry.RespondedAt = &t
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		entry.DecidedAt = &t
	}
	return &entry, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
