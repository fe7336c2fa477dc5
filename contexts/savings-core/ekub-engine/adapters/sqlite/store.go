// Package sqlite provides a single-node durable store for the ekub engine
// using the pure Go SQLite driver. It implements the same repository ports as
// the postgres adapter and suits single-process deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const schema = `
CREATE TABLE IF NOT EXISTS ekub_groups (
	group_id            TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	contribution_amount REAL NOT NULL,
	frequency           TEXT NOT NULL,
	max_members         INTEGER NOT NULL,
	members             TEXT NOT NULL,
	rotation_order      TEXT NOT NULL,
	current_cycle_index INTEGER NOT NULL,
	status              TEXT NOT NULL,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL,
	activated_at        INTEGER,
	closed_at           INTEGER
);

CREATE TABLE IF NOT EXISTS ekub_cycles (
	group_id           TEXT NOT NULL,
	cycle_index        INTEGER NOT NULL,
	recipient_id       TEXT NOT NULL,
	due_date           INTEGER NOT NULL,
	contributions      TEXT NOT NULL,
	state              TEXT NOT NULL,
	opened_at          INTEGER NOT NULL,
	completed_at       INTEGER,
	payout_at          INTEGER,
	overdue_flagged_at INTEGER,
	reminder_sent_at   INTEGER,
	PRIMARY KEY (group_id, cycle_index)
);

CREATE TABLE IF NOT EXISTS ekub_contributions (
	entry_id    TEXT PRIMARY KEY,
	group_id    TEXT NOT NULL,
	cycle_index INTEGER NOT NULL,
	member_id   TEXT NOT NULL,
	amount      REAL NOT NULL,
	status      TEXT NOT NULL,
	reversal_of TEXT NOT NULL DEFAULT '',
	posted_at   INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contributions_once
	ON ekub_contributions (group_id, cycle_index, member_id)
	WHERE status = 'posted';

CREATE TABLE IF NOT EXISTS ekub_payouts (
	group_id     TEXT NOT NULL,
	cycle_index  INTEGER NOT NULL,
	entry_id     TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	amount       REAL NOT NULL,
	issued_at    INTEGER NOT NULL,
	PRIMARY KEY (group_id, cycle_index)
);

CREATE TABLE IF NOT EXISTS ekub_idempotency (
	key              TEXT PRIMARY KEY,
	request_hash     TEXT NOT NULL,
	response_payload BLOB,
	expires_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ekub_outbox (
	outbox_id     TEXT PRIMARY KEY,
	event_type    TEXT NOT NULL,
	partition_key TEXT NOT NULL,
	payload       BLOB NOT NULL,
	status        TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	published_at  INTEGER
);
`

// Store implements the engine repository ports on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateGroup(ctx context.Context, group entities.Group) error {
	members, rotation, err := encodeGroupLists(group)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ekub_groups
			(group_id, name, contribution_amount, frequency, max_members, members,
			 rotation_order, current_cycle_index, status, created_at, updated_at,
			 activated_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.GroupID, group.Name, group.ContributionAmount, string(group.Frequency),
		group.MaxMembers, members, rotation, group.CurrentCycleIndex,
		string(group.Status), group.CreatedAt.UTC().UnixMilli(),
		group.UpdatedAt.UTC().UnixMilli(),
		optionalMilli(group.ActivatedAt), optionalMilli(group.ClosedAt),
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrInvalidGroupConfig
	}
	return err
}

func (s *Store) UpdateGroup(ctx context.Context, group entities.Group) error {
	members, rotation, err := encodeGroupLists(group)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE ekub_groups SET
			name = ?, contribution_amount = ?, frequency = ?, max_members = ?,
			members = ?, rotation_order = ?, current_cycle_index = ?, status = ?,
			updated_at = ?, activated_at = ?, closed_at = ?
		 WHERE group_id = ?`,
		group.Name, group.ContributionAmount, string(group.Frequency), group.MaxMembers,
		members, rotation, group.CurrentCycleIndex, string(group.Status),
		group.UpdatedAt.UTC().UnixMilli(),
		optionalMilli(group.ActivatedAt), optionalMilli(group.ClosedAt),
		strings.TrimSpace(group.GroupID),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrGroupNotFound
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (entities.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_id, name, contribution_amount, frequency, max_members, members,
			rotation_order, current_cycle_index, status, created_at, updated_at,
			activated_at, closed_at
		 FROM ekub_groups WHERE group_id = ?`,
		strings.TrimSpace(groupID),
	)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return entities.Group{}, domainerrors.ErrGroupNotFound
	}
	return group, err
}

func (s *Store) ListGroups(ctx context.Context, filter ports.GroupFilter) ([]entities.Group, error) {
	query := `SELECT group_id, name, contribution_amount, frequency, max_members, members,
			rotation_order, current_cycle_index, status, created_at, updated_at,
			activated_at, closed_at
		 FROM ekub_groups`
	args := make([]any, 0, 1)
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	items := make([]entities.Group, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		// Membership lives in a JSON column, so member filtering happens here.
		if filter.MemberID != "" && !group.IsMember(filter.MemberID) {
			continue
		}
		items = append(items, group)
	}
	return items, rows.Err()
}

func (s *Store) CreateCycle(ctx context.Context, cycle entities.Cycle) error {
	contributions, err := json.Marshal(emptyIfNil(cycle.Contributions))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ekub_cycles
			(group_id, cycle_index, recipient_id, due_date, contributions, state,
			 opened_at, completed_at, payout_at, overdue_flagged_at, reminder_sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycle.GroupID, cycle.CycleIndex, cycle.RecipientID,
		cycle.DueDate.UTC().UnixMilli(), string(contributions), string(cycle.State),
		cycle.OpenedAt.UTC().UnixMilli(),
		optionalMilli(cycle.CompletedAt), optionalMilli(cycle.PayoutAt),
		optionalMilli(cycle.OverdueFlaggedAt), optionalMilli(cycle.ReminderSentAt),
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrLedgerInvariantBroken
	}
	return err
}

func (s *Store) UpdateCycle(ctx context.Context, cycle entities.Cycle) error {
	return s.updateCycleExec(ctx, s.db.ExecContext, cycle)
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func (s *Store) updateCycleExec(ctx context.Context, exec execFunc, cycle entities.Cycle) error {
	contributions, err := json.Marshal(emptyIfNil(cycle.Contributions))
	if err != nil {
		return err
	}
	result, err := exec(ctx,
		`UPDATE ekub_cycles SET
			recipient_id = ?, due_date = ?, contributions = ?, state = ?,
			completed_at = ?, payout_at = ?, overdue_flagged_at = ?, reminder_sent_at = ?
		 WHERE group_id = ? AND cycle_index = ?`,
		cycle.RecipientID, cycle.DueDate.UTC().UnixMilli(), string(contributions),
		string(cycle.State),
		optionalMilli(cycle.CompletedAt), optionalMilli(cycle.PayoutAt),
		optionalMilli(cycle.OverdueFlaggedAt), optionalMilli(cycle.ReminderSentAt),
		strings.TrimSpace(cycle.GroupID), cycle.CycleIndex,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrCycleNotFound
	}
	return nil
}

func (s *Store) GetCycle(ctx context.Context, groupID string, cycleIndex int) (entities.Cycle, error) {
	row := s.db.QueryRowContext(ctx,
		selectCycle+" WHERE group_id = ? AND cycle_index = ?",
		strings.TrimSpace(groupID), cycleIndex,
	)
	cycle, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return entities.Cycle{}, domainerrors.ErrCycleNotFound
	}
	return cycle, err
}

const selectCycle = `SELECT group_id, cycle_index, recipient_id, due_date, contributions,
	state, opened_at, completed_at, payout_at, overdue_flagged_at, reminder_sent_at
 FROM ekub_cycles`

func (s *Store) ListOpenCyclesPastDue(ctx context.Context, now time.Time, limit int) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryCycles(ctx,
		selectCycle+` WHERE state = ? AND due_date < ? AND overdue_flagged_at IS NULL
			ORDER BY due_date ASC LIMIT ?`,
		string(entities.CycleStateOpen), now.UTC().UnixMilli(), limit,
	)
}

func (s *Store) ListOpenCyclesDueWithin(
	ctx context.Context,
	now time.Time,
	window time.Duration,
	limit int,
) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryCycles(ctx,
		selectCycle+` WHERE state = ? AND due_date >= ? AND due_date <= ?
			AND reminder_sent_at IS NULL
			ORDER BY due_date ASC LIMIT ?`,
		string(entities.CycleStateOpen), now.UTC().UnixMilli(),
		now.Add(window).UTC().UnixMilli(), limit,
	)
}

func (s *Store) ListCompletedWithoutPayout(ctx context.Context, limit int) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryCycles(ctx,
		selectCycle+` WHERE state = ? AND NOT EXISTS (
			SELECT 1 FROM ekub_payouts p
			WHERE p.group_id = ekub_cycles.group_id AND p.cycle_index = ekub_cycles.cycle_index)
			ORDER BY due_date ASC LIMIT ?`,
		string(entities.CycleStateCompleted), limit,
	)
}

func (s *Store) queryCycles(ctx context.Context, query string, args ...any) ([]entities.Cycle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	items := make([]entities.Cycle, 0)
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cycle)
	}
	return items, rows.Err()
}

func (s *Store) AppendContribution(
	ctx context.Context,
	record entities.ContributionRecord,
	cycle entities.Cycle,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ekub_contributions
			(entry_id, group_id, cycle_index, member_id, amount, status, reversal_of, posted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.EntryID, record.GroupID, record.CycleIndex, record.MemberID,
		record.Amount, string(record.Status), record.ReversalOf,
		record.PostedAt.UTC().UnixMilli(),
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrAlreadyContributedThisCycle
	}
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	if err := s.updateCycleExec(ctx, tx.ExecContext, cycle); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AppendPayout(
	ctx context.Context,
	record entities.PayoutRecord,
	cycle entities.Cycle,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ekub_payouts
			(group_id, cycle_index, entry_id, recipient_id, amount, issued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.GroupID, record.CycleIndex, record.EntryID, record.RecipientID,
		record.Amount, record.IssuedAt.UTC().UnixMilli(),
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrLedgerInvariantBroken
	}
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	if err := s.updateCycleExec(ctx, tx.ExecContext, cycle); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetPayout(ctx context.Context, groupID string, cycleIndex int) (entities.PayoutRecord, bool, error) {
	var record entities.PayoutRecord
	var issuedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_id, group_id, cycle_index, recipient_id, amount, issued_at
		 FROM ekub_payouts WHERE group_id = ? AND cycle_index = ?`,
		strings.TrimSpace(groupID), cycleIndex,
	).Scan(&record.EntryID, &record.GroupID, &record.CycleIndex,
		&record.RecipientID, &record.Amount, &issuedAt)
	if err == sql.ErrNoRows {
		return entities.PayoutRecord{}, false, nil
	}
	if err != nil {
		return entities.PayoutRecord{}, false, fmt.Errorf("failed to get payout: %w", err)
	}
	record.IssuedAt = time.UnixMilli(issuedAt).UTC()
	return record, true, nil
}

func (s *Store) ListLedger(ctx context.Context, groupID string) ([]entities.LedgerEntry, error) {
	trimmed := strings.TrimSpace(groupID)
	entries := make([]entities.LedgerEntry, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, group_id, cycle_index, member_id, amount, status, reversal_of, posted_at
		 FROM ekub_contributions WHERE group_id = ? ORDER BY posted_at ASC`,
		trimmed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record entities.ContributionRecord
		var status string
		var postedAt int64
		if err := rows.Scan(&record.EntryID, &record.GroupID, &record.CycleIndex,
			&record.MemberID, &record.Amount, &status, &record.ReversalOf, &postedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		record.Status = entities.EntryStatus(status)
		record.PostedAt = time.UnixMilli(postedAt).UTC()
		stored := record
		entries = append(entries, entities.LedgerEntry{
			EntryType:    entities.LedgerEntryContribution,
			Contribution: &stored,
			RecordedAt:   stored.PostedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payoutRows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, group_id, cycle_index, recipient_id, amount, issued_at
		 FROM ekub_payouts WHERE group_id = ? ORDER BY issued_at ASC`,
		trimmed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer payoutRows.Close()
	for payoutRows.Next() {
		var record entities.PayoutRecord
		var issuedAt int64
		if err := payoutRows.Scan(&record.EntryID, &record.GroupID, &record.CycleIndex,
			&record.RecipientID, &record.Amount, &issuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		record.IssuedAt = time.UnixMilli(issuedAt).UTC()
		stored := record
		entries = append(entries, entities.LedgerEntry{
			EntryType:  entities.LedgerEntryPayout,
			Payout:     &stored,
			RecordedAt: stored.IssuedAt,
		})
	}
	if err := payoutRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
	return entries, nil
}

func (s *Store) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var record ports.IdempotencyRecord
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT key, request_hash, response_payload, expires_at
		 FROM ekub_idempotency WHERE key = ?`,
		strings.TrimSpace(key),
	).Scan(&record.Key, &record.RequestHash, &record.ResponsePayload, &expiresAt)
	if err == sql.ErrNoRows {
		return ports.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return ports.IdempotencyRecord{}, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	record.ExpiresAt = time.UnixMilli(expiresAt).UTC()

	if expiresAt > 0 && now.UTC().After(record.ExpiresAt) {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM ekub_idempotency WHERE key = ?", record.Key); err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ekub_idempotency (key, request_hash, response_payload, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		strings.TrimSpace(record.Key), record.RequestHash,
		record.ResponsePayload, record.ExpiresAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to put idempotency record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var existingHash string
	if err := s.db.QueryRowContext(ctx,
		"SELECT request_hash FROM ekub_idempotency WHERE key = ?",
		strings.TrimSpace(record.Key),
	).Scan(&existingHash); err != nil {
		return err
	}
	if existingHash != record.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ekub_outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (outbox_id) DO NOTHING`,
		envelope.EventID, envelope.EventType, envelope.PartitionKey,
		payload, outboxStatusPending, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox: %w", err)
	}
	return nil
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		 FROM ekub_outbox WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		outboxStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var item ports.OutboxMessage
		var createdAt int64
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey,
			&item.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		item.CreatedAt = time.UnixMilli(createdAt).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE ekub_outbox SET status = ?, published_at = ? WHERE outbox_id = ?",
		outboxStatusPublished, publishedAt.UTC().UnixMilli(), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox published: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrLedgerInvariantBroken
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (entities.Group, error) {
	var group entities.Group
	var frequency, status, members, rotation string
	var createdAt, updatedAt int64
	var activatedAt, closedAt sql.NullInt64

	err := row.Scan(&group.GroupID, &group.Name, &group.ContributionAmount,
		&frequency, &group.MaxMembers, &members, &rotation,
		&group.CurrentCycleIndex, &status, &createdAt, &updatedAt,
		&activatedAt, &closedAt)
	if err != nil {
		return entities.Group{}, err
	}

	group.Frequency = entities.Frequency(frequency)
	group.Status = entities.GroupStatus(status)
	group.CreatedAt = time.UnixMilli(createdAt).UTC()
	group.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	group.ActivatedAt = optionalTime(activatedAt)
	group.ClosedAt = optionalTime(closedAt)
	if err := json.Unmarshal([]byte(members), &group.Members); err != nil {
		return entities.Group{}, fmt.Errorf("failed to decode members: %w", err)
	}
	if err := json.Unmarshal([]byte(rotation), &group.RotationOrder); err != nil {
		return entities.Group{}, fmt.Errorf("failed to decode rotation order: %w", err)
	}
	return group, nil
}

func scanCycle(row rowScanner) (entities.Cycle, error) {
	var cycle entities.Cycle
	var state, contributions string
	var dueDate, openedAt int64
	var completedAt, payoutAt, overdueAt, reminderAt sql.NullInt64

	err := row.Scan(&cycle.GroupID, &cycle.CycleIndex, &cycle.RecipientID,
		&dueDate, &contributions, &state, &openedAt,
		&completedAt, &payoutAt, &overdueAt, &reminderAt)
	if err != nil {
		return entities.Cycle{}, err
	}

	cycle.State = entities.CycleState(state)
	cycle.DueDate = time.UnixMilli(dueDate).UTC()
	cycle.OpenedAt = time.UnixMilli(openedAt).UTC()
	cycle.CompletedAt = optionalTime(completedAt)
	cycle.PayoutAt = optionalTime(payoutAt)
	cycle.OverdueFlaggedAt = optionalTime(overdueAt)
	cycle.ReminderSentAt = optionalTime(reminderAt)
	if err := json.Unmarshal([]byte(contributions), &cycle.Contributions); err != nil {
		return entities.Cycle{}, fmt.Errorf("failed to decode contributions: %w", err)
	}
	return cycle, nil
}

func encodeGroupLists(group entities.Group) (string, string, error) {
	members, err := json.Marshal(emptyIfNil(group.Members))
	if err != nil {
		return "", "", err
	}
	rotation, err := json.Marshal(emptyIfNil(group.RotationOrder))
	if err != nil {
		return "", "", err
	}
	return string(members), string(rotation), nil
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func optionalMilli(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().UnixMilli()
}

func optionalTime(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	timestamp := time.UnixMilli(value.Int64).UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
