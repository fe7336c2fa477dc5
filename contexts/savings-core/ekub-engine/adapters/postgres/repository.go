package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateGroup(ctx context.Context, group entities.Group) error {
	row := groupModelFromEntity(group)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidGroupConfig
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateGroup(ctx context.Context, group entities.Group) error {
	result := r.db.WithContext(ctx).
		Model(&groupModel{}).
		Where("group_id = ?", strings.TrimSpace(group.GroupID)).
		Updates(groupUpdatesFromEntity(group))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrGroupNotFound
	}
	return nil
}

func (r *Repository) GetGroup(ctx context.Context, groupID string) (entities.Group, error) {
	var row groupModel
	err := r.db.WithContext(ctx).
		Where("group_id = ?", strings.TrimSpace(groupID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Group{}, domainerrors.ErrGroupNotFound
		}
		return entities.Group{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListGroups(ctx context.Context, filter ports.GroupFilter) ([]entities.Group, error) {
	tx := r.db.WithContext(ctx).Model(&groupModel{})
	if strings.TrimSpace(filter.MemberID) != "" {
		tx = tx.Where("? = ANY(members)", strings.TrimSpace(filter.MemberID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}

	var rows []groupModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.Group, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateCycle(ctx context.Context, cycle entities.Cycle) error {
	row := cycleModelFromEntity(cycle)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrLedgerInvariantBroken
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateCycle(ctx context.Context, cycle entities.Cycle) error {
	result := r.db.WithContext(ctx).
		Model(&cycleModel{}).
		Where("group_id = ? AND cycle_index = ?", strings.TrimSpace(cycle.GroupID), cycle.CycleIndex).
		Updates(cycleUpdatesFromEntity(cycle))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCycleNotFound
	}
	return nil
}

func (r *Repository) GetCycle(ctx context.Context, groupID string, cycleIndex int) (entities.Cycle, error) {
	var row cycleModel
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND cycle_index = ?", strings.TrimSpace(groupID), cycleIndex).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Cycle{}, domainerrors.ErrCycleNotFound
		}
		return entities.Cycle{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListOpenCyclesPastDue(ctx context.Context, now time.Time, limit int) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []cycleModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND due_date < ? AND overdue_flagged_at IS NULL", string(entities.CycleStateOpen), now.UTC()).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return cycleEntities(rows), nil
}

func (r *Repository) ListOpenCyclesDueWithin(
	ctx context.Context,
	now time.Time,
	window time.Duration,
	limit int,
) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []cycleModel
	err := r.db.WithContext(ctx).
		Where(
			"state = ? AND due_date >= ? AND due_date <= ? AND reminder_sent_at IS NULL",
			string(entities.CycleStateOpen), now.UTC(), now.Add(window).UTC(),
		).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return cycleEntities(rows), nil
}

func (r *Repository) ListCompletedWithoutPayout(ctx context.Context, limit int) ([]entities.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []cycleModel
	err := r.db.WithContext(ctx).
		Where(
			"state = ? AND NOT EXISTS (SELECT 1 FROM ekub_payouts p WHERE p.group_id = ekub_cycles.group_id AND p.cycle_index = ekub_cycles.cycle_index)",
			string(entities.CycleStateCompleted),
		).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return cycleEntities(rows), nil
}

// AppendContribution writes the contribution row and the updated cycle in one
// transaction. The partial unique index on posted (group, cycle, member) rows
// is the last line of defense against double contribution.
func (r *Repository) AppendContribution(
	ctx context.Context,
	record entities.ContributionRecord,
	cycle entities.Cycle,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := contributionModelFromEntity(record)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyContributedThisCycle
			}
			return err
		}

		result := tx.Model(&cycleModel{}).
			Where("group_id = ? AND cycle_index = ?", strings.TrimSpace(cycle.GroupID), cycle.CycleIndex).
			Updates(cycleUpdatesFromEntity(cycle))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrCycleNotFound
		}
		return nil
	})
}

// AppendPayout writes the payout row and the updated cycle in one transaction.
// The (group_id, cycle_index) primary key refuses a second payout per cycle.
func (r *Repository) AppendPayout(
	ctx context.Context,
	record entities.PayoutRecord,
	cycle entities.Cycle,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := payoutModelFromEntity(record)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrLedgerInvariantBroken
			}
			return err
		}

		result := tx.Model(&cycleModel{}).
			Where("group_id = ? AND cycle_index = ?", strings.TrimSpace(cycle.GroupID), cycle.CycleIndex).
			Updates(cycleUpdatesFromEntity(cycle))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrCycleNotFound
		}
		return nil
	})
}

func (r *Repository) GetPayout(ctx context.Context, groupID string, cycleIndex int) (entities.PayoutRecord, bool, error) {
	var row payoutModel
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND cycle_index = ?", strings.TrimSpace(groupID), cycleIndex).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PayoutRecord{}, false, nil
		}
		return entities.PayoutRecord{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListLedger(ctx context.Context, groupID string) ([]entities.LedgerEntry, error) {
	trimmed := strings.TrimSpace(groupID)

	var contributionRows []contributionModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", trimmed).
		Order("posted_at ASC").
		Find(&contributionRows).
		Error; err != nil {
		return nil, err
	}

	var payoutRows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", trimmed).
		Order("issued_at ASC").
		Find(&payoutRows).
		Error; err != nil {
		return nil, err
	}

	entries := make([]entities.LedgerEntry, 0, len(contributionRows)+len(payoutRows))
	for _, row := range contributionRows {
		record := row.toEntity()
		entries = append(entries, entities.LedgerEntry{
			EntryType:    entities.LedgerEntryContribution,
			Contribution: &record,
			RecordedAt:   record.PostedAt,
		})
	}
	for _, row := range payoutRows {
		record := row.toEntity()
		entries = append(entries, entities.LedgerEntry{
			EntryType:  entities.LedgerEntryPayout,
			Payout:     &record,
			RecordedAt: record.IssuedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
	return entries, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash || !bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrLedgerInvariantBroken
	}
	return nil
}

type groupModel struct {
	GroupID            string     `gorm:"column:group_id;primaryKey"`
	Name               string     `gorm:"column:name"`
	ContributionAmount float64    `gorm:"column:contribution_amount"`
	Frequency          string     `gorm:"column:frequency"`
	MaxMembers         int        `gorm:"column:max_members"`
	Members            []string   `gorm:"column:members;type:text[]"`
	RotationOrder      []string   `gorm:"column:rotation_order;type:text[]"`
	CurrentCycleIndex  int        `gorm:"column:current_cycle_index"`
	Status             string     `gorm:"column:status"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	ActivatedAt        *time.Time `gorm:"column:activated_at"`
	ClosedAt           *time.Time `gorm:"column:closed_at"`
}

func (groupModel) TableName() string {
	return "ekub_groups"
}

func groupModelFromEntity(item entities.Group) groupModel {
	return groupModel{
		GroupID:            strings.TrimSpace(item.GroupID),
		Name:               strings.TrimSpace(item.Name),
		ContributionAmount: item.ContributionAmount,
		Frequency:          string(item.Frequency),
		MaxMembers:         item.MaxMembers,
		Members:            copyOrEmpty(item.Members),
		RotationOrder:      copyOrEmpty(item.RotationOrder),
		CurrentCycleIndex:  item.CurrentCycleIndex,
		Status:             string(item.Status),
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
		ActivatedAt:        normalizeOptionalTime(item.ActivatedAt),
		ClosedAt:           normalizeOptionalTime(item.ClosedAt),
	}
}

func groupUpdatesFromEntity(item entities.Group) map[string]any {
	row := groupModelFromEntity(item)
	return map[string]any{
		"name":                row.Name,
		"contribution_amount": row.ContributionAmount,
		"frequency":           row.Frequency,
		"max_members":         row.MaxMembers,
		"members":             row.Members,
		"rotation_order":      row.RotationOrder,
		"current_cycle_index": row.CurrentCycleIndex,
		"status":              row.Status,
		"updated_at":          row.UpdatedAt,
		"activated_at":        row.ActivatedAt,
		"closed_at":           row.ClosedAt,
	}
}

func (m groupModel) toEntity() entities.Group {
	return entities.Group{
		GroupID:            m.GroupID,
		Name:               m.Name,
		ContributionAmount: m.ContributionAmount,
		Frequency:          entities.Frequency(m.Frequency),
		MaxMembers:         m.MaxMembers,
		Members:            copyOrEmpty(m.Members),
		RotationOrder:      copyOrEmpty(m.RotationOrder),
		CurrentCycleIndex:  m.CurrentCycleIndex,
		Status:             entities.GroupStatus(m.Status),
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		ActivatedAt:        normalizeOptionalTime(m.ActivatedAt),
		ClosedAt:           normalizeOptionalTime(m.ClosedAt),
	}
}

type cycleModel struct {
	GroupID          string     `gorm:"column:group_id;primaryKey"`
	CycleIndex       int        `gorm:"column:cycle_index;primaryKey"`
	RecipientID      string     `gorm:"column:recipient_id"`
	DueDate          time.Time  `gorm:"column:due_date"`
	Contributions    []string   `gorm:"column:contributions;type:text[]"`
	State            string     `gorm:"column:state"`
	OpenedAt         time.Time  `gorm:"column:opened_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	PayoutAt         *time.Time `gorm:"column:payout_at"`
	OverdueFlaggedAt *time.Time `gorm:"column:overdue_flagged_at"`
	ReminderSentAt   *time.Time `gorm:"column:reminder_sent_at"`
}

func (cycleModel) TableName() string {
	return "ekub_cycles"
}

func cycleModelFromEntity(item entities.Cycle) cycleModel {
	return cycleModel{
		GroupID:          strings.TrimSpace(item.GroupID),
		CycleIndex:       item.CycleIndex,
		RecipientID:      strings.TrimSpace(item.RecipientID),
		DueDate:          item.DueDate.UTC(),
		Contributions:    copyOrEmpty(item.Contributions),
		State:            string(item.State),
		OpenedAt:         item.OpenedAt.UTC(),
		CompletedAt:      normalizeOptionalTime(item.CompletedAt),
		PayoutAt:         normalizeOptionalTime(item.PayoutAt),
		OverdueFlaggedAt: normalizeOptionalTime(item.OverdueFlaggedAt),
		ReminderSentAt:   normalizeOptionalTime(item.ReminderSentAt),
	}
}

func cycleUpdatesFromEntity(item entities.Cycle) map[string]any {
	row := cycleModelFromEntity(item)
	return map[string]any{
		"recipient_id":       row.RecipientID,
		"due_date":           row.DueDate,
		"contributions":      row.Contributions,
		"state":              row.State,
		"completed_at":       row.CompletedAt,
		"payout_at":          row.PayoutAt,
		"overdue_flagged_at": row.OverdueFlaggedAt,
		"reminder_sent_at":   row.ReminderSentAt,
	}
}

func (m cycleModel) toEntity() entities.Cycle {
	return entities.Cycle{
		GroupID:          m.GroupID,
		CycleIndex:       m.CycleIndex,
		RecipientID:      m.RecipientID,
		DueDate:          m.DueDate.UTC(),
		Contributions:    copyOrEmpty(m.Contributions),
		State:            entities.CycleState(m.State),
		OpenedAt:         m.OpenedAt.UTC(),
		CompletedAt:      normalizeOptionalTime(m.CompletedAt),
		PayoutAt:         normalizeOptionalTime(m.PayoutAt),
		OverdueFlaggedAt: normalizeOptionalTime(m.OverdueFlaggedAt),
		ReminderSentAt:   normalizeOptionalTime(m.ReminderSentAt),
	}
}

func cycleEntities(rows []cycleModel) []entities.Cycle {
	items := make([]entities.Cycle, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type contributionModel struct {
	EntryID    string    `gorm:"column:entry_id;primaryKey"`
	GroupID    string    `gorm:"column:group_id"`
	CycleIndex int       `gorm:"column:cycle_index"`
	MemberID   string    `gorm:"column:member_id"`
	Amount     float64   `gorm:"column:amount"`
	Status     string    `gorm:"column:status"`
	ReversalOf string    `gorm:"column:reversal_of"`
	PostedAt   time.Time `gorm:"column:posted_at"`
}

func (contributionModel) TableName() string {
	return "ekub_contributions"
}

func contributionModelFromEntity(item entities.ContributionRecord) contributionModel {
	return contributionModel{
		EntryID:    strings.TrimSpace(item.EntryID),
		GroupID:    strings.TrimSpace(item.GroupID),
		CycleIndex: item.CycleIndex,
		MemberID:   strings.TrimSpace(item.MemberID),
		Amount:     item.Amount,
		Status:     string(item.Status),
		ReversalOf: strings.TrimSpace(item.ReversalOf),
		PostedAt:   item.PostedAt.UTC(),
	}
}

func (m contributionModel) toEntity() entities.ContributionRecord {
	return entities.ContributionRecord{
		EntryID:    m.EntryID,
		GroupID:    m.GroupID,
		CycleIndex: m.CycleIndex,
		MemberID:   m.MemberID,
		Amount:     m.Amount,
		Status:     entities.EntryStatus(m.Status),
		ReversalOf: m.ReversalOf,
		PostedAt:   m.PostedAt.UTC(),
	}
}

type payoutModel struct {
	GroupID     string    `gorm:"column:group_id;primaryKey"`
	CycleIndex  int       `gorm:"column:cycle_index;primaryKey"`
	EntryID     string    `gorm:"column:entry_id"`
	RecipientID string    `gorm:"column:recipient_id"`
	Amount      float64   `gorm:"column:amount"`
	IssuedAt    time.Time `gorm:"column:issued_at"`
}

func (payoutModel) TableName() string {
	return "ekub_payouts"
}

func payoutModelFromEntity(item entities.PayoutRecord) payoutModel {
	return payoutModel{
		GroupID:     strings.TrimSpace(item.GroupID),
		CycleIndex:  item.CycleIndex,
		EntryID:     strings.TrimSpace(item.EntryID),
		RecipientID: strings.TrimSpace(item.RecipientID),
		Amount:      item.Amount,
		IssuedAt:    item.IssuedAt.UTC(),
	}
}

func (m payoutModel) toEntity() entities.PayoutRecord {
	return entities.PayoutRecord{
		EntryID:     m.EntryID,
		GroupID:     m.GroupID,
		CycleIndex:  m.CycleIndex,
		RecipientID: m.RecipientID,
		Amount:      m.Amount,
		IssuedAt:    m.IssuedAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ekub_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ekub_outbox"
}

func copyOrEmpty(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	return append([]string(nil), items...)
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
