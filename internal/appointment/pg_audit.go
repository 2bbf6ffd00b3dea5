package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, seq, action, appointment_id, patient_id, doctor_id, details, status, error_message, created_at`

func scanAuditEntry(row pgx.Row) (*AuditLogEntry, error) {
	var e AuditLogEntry
	var details *string

	err := row.Scan(
		&e.ID,
		&e.Seq,
		&e.Action,
		&e.AppointmentID,
		&e.PatientID,
		&e.DoctorID,
		&details,
		&e.Status,
		&e.ErrorMessage,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("audit entry not returned")
		}
		return nil, err
	}

	if details != nil {
		e.Details = *details
	}
	return &e, nil
}

func (r *PgRepository) InsertAuditEntry(ctx context.Context, e AuditLogEntry) (*AuditLogEntry, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (id, action, appointment_id, patient_id, doctor_id, details, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING `+auditColumns+`
	`, e.ID, string(e.Action), e.AppointmentID, e.PatientID, e.DoctorID, e.Details, string(e.Status), e.ErrorMessage)

	entry, err := scanAuditEntry(row)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// ListAuditEntries returns entries newest first. An empty action lists all.
func (r *PgRepository) ListAuditEntries(ctx context.Context, action AuditAction) ([]AuditLogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE $1 = '' OR action = $1
		ORDER BY seq DESC
	`, string(action))
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return collect(rows, scanAuditEntry)
}

// ListAuditEntriesAfter pages forward through the trail in seq order. Rows
// inside the settle window are left for a later page.
func (r *PgRepository) ListAuditEntriesAfter(ctx context.Context, afterSeq int64, limit int) ([]AuditLogEntry, error) {
	if limit <= 0 {
		return []AuditLogEntry{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE seq > $1
		  AND created_at < now() - make_interval(secs => $3)
		ORDER BY seq
		LIMIT $2
	`, afterSeq, limit, r.auditSettle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return collect(rows, scanAuditEntry)
}
