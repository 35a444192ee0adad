package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/barangay-rewards/internal/model"
)

// AuditRepo appends to equip_audit_log.  Rows are never updated or deleted
// and the engine never reads them back; ListByResident exists for support
// tooling and tests.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendTx records an equip toggle inside the toggle's transaction, so the
// audit row commits or rolls back together with the equip change.
func (r *AuditRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.EquipAuditEntry) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO equip_audit_log (resident_id, reward_id, action, created_at) VALUES (?, ?, ?, ?)`,
		e.ResidentID, e.RewardID, string(e.Action), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append equip audit: %w", Classify(err))
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListByResident returns a resident's audit trail, oldest first.
func (r *AuditRepo) ListByResident(ctx context.Context, residentID int64) ([]model.EquipAuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, resident_id, reward_id, action, created_at FROM equip_audit_log
		  WHERE resident_id = ? ORDER BY id ASC`, residentID)
	if err != nil {
		return nil, fmt.Errorf("list equip audit: %w", Classify(err))
	}
	defer rows.Close()

	out := make([]model.EquipAuditEntry, 0)
	for rows.Next() {
		var e model.EquipAuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.ResidentID, &e.RewardID, &action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan equip audit: %w", err)
		}
		e.Action = model.EquipAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
