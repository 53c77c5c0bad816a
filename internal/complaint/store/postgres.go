package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"grievance/internal/complaint/models"
	"grievance/internal/platform/database"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type Postgres struct {
	db *sqlx.DB
	tx *tx.Postgres
}

// NewPostgres constructs a PostgreSQL-backed complaint store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, tx: tx.NewPostgres(db)}
}

type complaintRow struct {
	ID                 id.ComplaintID `db:"id"`
	TrackingNumber     string         `db:"tracking_number"`
	CitizenID          id.UserID      `db:"citizen_id"`
	EntityID           id.EntityID    `db:"entity_id"`
	Kind               string         `db:"kind"`
	Description        string         `db:"description"`
	Location           string         `db:"location"`
	Status             string         `db:"status"`
	AssignedTo         *id.UserID     `db:"assigned_to"`
	LockedAt           sql.NullTime   `db:"locked_at"`
	LockExpiresAt      sql.NullTime   `db:"lock_expires_at"`
	InfoRequested      bool           `db:"info_requested"`
	InfoRequestMessage string         `db:"info_request_message"`
	InfoRequestedAt    sql.NullTime   `db:"info_requested_at"`
	AdminNotes         string         `db:"admin_notes"`
	Resolution         string         `db:"resolution"`
	ReviewedAt         sql.NullTime   `db:"reviewed_at"`
	ResolvedAt         sql.NullTime   `db:"resolved_at"`
	Version            int            `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r complaintRow) toModel() *models.Complaint {
	return &models.Complaint{
		ID:                 r.ID,
		TrackingNumber:     r.TrackingNumber,
		CitizenID:          r.CitizenID,
		EntityID:           r.EntityID,
		Kind:               r.Kind,
		Description:        r.Description,
		Location:           r.Location,
		Status:             models.Status(r.Status),
		AssignedTo:         r.AssignedTo,
		LockedAt:           timePtr(r.LockedAt),
		LockExpiresAt:      timePtr(r.LockExpiresAt),
		InfoRequested:      r.InfoRequested,
		InfoRequestMessage: r.InfoRequestMessage,
		InfoRequestedAt:    timePtr(r.InfoRequestedAt),
		AdminNotes:         r.AdminNotes,
		Resolution:         r.Resolution,
		ReviewedAt:         timePtr(r.ReviewedAt),
		ResolvedAt:         timePtr(r.ResolvedAt),
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toRow(c *models.Complaint) complaintRow {
	return complaintRow{
		ID:                 c.ID,
		TrackingNumber:     c.TrackingNumber,
		CitizenID:          c.CitizenID,
		EntityID:           c.EntityID,
		Kind:               c.Kind,
		Description:        c.Description,
		Location:           c.Location,
		Status:             string(c.Status),
		AssignedTo:         c.AssignedTo,
		LockedAt:           nullTime(c.LockedAt),
		LockExpiresAt:      nullTime(c.LockExpiresAt),
		InfoRequested:      c.InfoRequested,
		InfoRequestMessage: c.InfoRequestMessage,
		InfoRequestedAt:    nullTime(c.InfoRequestedAt),
		AdminNotes:         c.AdminNotes,
		Resolution:         c.Resolution,
		ReviewedAt:         nullTime(c.ReviewedAt),
		ResolvedAt:         nullTime(c.ResolvedAt),
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type attachmentRow struct {
	ID          id.AttachmentID `db:"id"`
	ComplaintID id.ComplaintID  `db:"complaint_id"`
	FileName    string          `db:"file_name"`
	FilePath    string          `db:"file_path"`
	FileType    string          `db:"file_type"`
	MimeType    string          `db:"mime_type"`
	FileSize    int64           `db:"file_size"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r attachmentRow) toModel() models.Attachment {
	return models.Attachment{
		ID:          r.ID,
		ComplaintID: r.ComplaintID,
		FileName:    r.FileName,
		FilePath:    r.FilePath,
		FileType:    models.FileType(r.FileType),
		MimeType:    r.MimeType,
		FileSize:    r.FileSize,
		CreatedAt:   r.CreatedAt,
	}
}

func toAttachmentRow(complaintID id.ComplaintID, a models.Attachment) attachmentRow {
	return attachmentRow{
		ID:          a.ID,
		ComplaintID: complaintID,
		FileName:    a.FileName,
		FilePath:    a.FilePath,
		FileType:    string(a.FileType),
		MimeType:    a.MimeType,
		FileSize:    a.FileSize,
		CreatedAt:   a.CreatedAt,
	}
}

const selectComplaint = `
	SELECT id, tracking_number, citizen_id, entity_id, kind, description, location, status,
		assigned_to, locked_at, lock_expires_at, info_requested, info_request_message, info_requested_at,
		admin_notes, resolution, reviewed_at, resolved_at, version, created_at, updated_at
	FROM complaints`

// Create inserts the complaint and its attachments.
func (s *Postgres) Create(ctx context.Context, c *models.Complaint) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
			INSERT INTO complaints (id, tracking_number, citizen_id, entity_id, kind, description, location, status,
				assigned_to, locked_at, lock_expires_at, info_requested, info_request_message, info_requested_at,
				admin_notes, resolution, reviewed_at, resolved_at, version, created_at, updated_at)
			VALUES (:id, :tracking_number, :citizen_id, :entity_id, :kind, :description, :location, :status,
				:assigned_to, :locked_at, :lock_expires_at, :info_requested, :info_request_message, :info_requested_at,
				:admin_notes, :resolution, :reviewed_at, :resolved_at, :version, :created_at, :updated_at)
		`, toRow(c))
		if err != nil {
			return translateWriteErr(err, "insert complaint")
		}
		return s.insertAttachments(ctx, c.ID, c.Attachments)
	})
}

func (s *Postgres) insertAttachments(ctx context.Context, complaintID id.ComplaintID, attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	rows := make([]attachmentRow, 0, len(attachments))
	for _, a := range attachments {
		rows = append(rows, toAttachmentRow(complaintID, a))
	}
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO complaint_attachments (id, complaint_id, file_name, file_path, file_type, mime_type, file_size, created_at)
		VALUES (:id, :complaint_id, :file_name, :file_path, :file_type, :mime_type, :file_size, :created_at)
	`, rows)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("complaint %s: %w", complaintID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}

func (s *Postgres) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error) {
	var row complaintRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row, selectComplaint+` WHERE tracking_number = $1`, trackingNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complaint %s: %w", trackingNumber, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	c := row.toModel()
	if err := s.loadAttachments(ctx, []*models.Complaint{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Postgres) loadAttachments(ctx context.Context, complaints []*models.Complaint) error {
	if len(complaints) == 0 {
		return nil
	}
	ids := make([]string, 0, len(complaints))
	byID := make(map[id.ComplaintID]*models.Complaint, len(complaints))
	for _, c := range complaints {
		ids = append(ids, c.ID.String())
		byID[c.ID] = c
	}
	var rows []attachmentRow
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, `
		SELECT id, complaint_id, file_name, file_path, file_type, mime_type, file_size, created_at
		FROM complaint_attachments WHERE complaint_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	for _, r := range rows {
		if c, ok := byID[r.ComplaintID]; ok {
			c.Attachments = append(c.Attachments, r.toModel())
		}
	}
	return nil
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.CitizenID != nil {
		add("citizen_id = $%d", *f.CitizenID)
	}
	if f.EntityID != nil {
		add("entity_id = $%d", *f.EntityID)
	}
	if f.AssignedTo != nil {
		add("assigned_to = $%d", *f.AssignedTo)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Postgres) List(ctx context.Context, filter Filter, page id.PageRequest) (id.Page[*models.Complaint], error) {
	where, args := filter.where()
	exec := tx.Pick(ctx, s.db)

	var total int
	if err := exec.GetContext(ctx, &total, `SELECT count(*) FROM complaints`+where, args...); err != nil {
		return id.Page[*models.Complaint]{}, fmt.Errorf("count complaints: %w", err)
	}

	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC, tracking_number DESC LIMIT $%d OFFSET $%d`,
		selectComplaint, where, len(args)+1, len(args)+2)
	var rows []complaintRow
	if err := exec.SelectContext(ctx, &rows, query, append(args, page.Limit(), page.Offset())...); err != nil {
		return id.Page[*models.Complaint]{}, fmt.Errorf("list complaints: %w", err)
	}
	items := make([]*models.Complaint, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toModel())
	}
	if err := s.loadAttachments(ctx, items); err != nil {
		return id.Page[*models.Complaint]{}, err
	}
	return id.Page[*models.Complaint]{Items: items, Total: total, Request: page}, nil
}

// Execute locks the row FOR UPDATE and writes back with a version check.
func (s *Postgres) Execute(ctx context.Context, trackingNumber string, validate func(*models.Complaint) error, mutate func(*models.Complaint)) (*models.Complaint, error) {
	var result *models.Complaint
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.Pick(ctx, s.db)
		var row complaintRow
		err := exec.GetContext(ctx, &row, selectComplaint+` WHERE tracking_number = $1 FOR UPDATE`, trackingNumber)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("complaint %s: %w", trackingNumber, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock complaint: %w", err)
		}
		c := row.toModel()
		if err := s.loadAttachments(ctx, []*models.Complaint{c}); err != nil {
			return err
		}
		if err := validate(c); err != nil {
			return err
		}
		previous := c.Version
		mutate(c)

		res, err := exec.ExecContext(ctx, `
			UPDATE complaints SET kind = $1, description = $2, location = $3, status = $4, assigned_to = $5,
				locked_at = $6, lock_expires_at = $7, info_requested = $8, info_request_message = $9,
				info_requested_at = $10, admin_notes = $11, resolution = $12, reviewed_at = $13,
				resolved_at = $14, version = $15, updated_at = $16
			WHERE id = $17 AND version = $18
		`, c.Kind, c.Description, c.Location, string(c.Status), c.AssignedTo,
			nullTime(c.LockedAt), nullTime(c.LockExpiresAt), c.InfoRequested, c.InfoRequestMessage,
			nullTime(c.InfoRequestedAt), c.AdminNotes, c.Resolution, nullTime(c.ReviewedAt),
			nullTime(c.ResolvedAt), c.Version, c.UpdatedAt, c.ID, previous)
		if err != nil {
			return fmt.Errorf("update complaint: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("complaint %s version %d: %w", trackingNumber, previous, sentinel.ErrConflict)
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) AddAttachments(ctx context.Context, complaintID id.ComplaintID, attachments []models.Attachment) error {
	return s.insertAttachments(ctx, complaintID, attachments)
}

// DeleteAttachment removes the row and returns the attachment for storage cleanup.
func (s *Postgres) DeleteAttachment(ctx context.Context, complaintID id.ComplaintID, attachmentID id.AttachmentID) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`DELETE FROM complaint_attachments WHERE id = $1 AND complaint_id = $2`, attachmentID, complaintID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attachment %s: %w", attachmentID, sentinel.ErrNotFound)
	}
	return nil
}

type countRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (s *Postgres) countBy(ctx context.Context, column string, keys []string) (map[string]int, error) {
	out := make(map[string]int, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []countRow
	query := fmt.Sprintf(`SELECT %[1]s::text AS key, count(*) AS count FROM complaints
		WHERE %[1]s = ANY($1::uuid[]) GROUP BY %[1]s`, column)
	if err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("count complaints by %s: %w", column, err)
	}
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}

func (s *Postgres) CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error) {
	keys := make([]string, 0, len(entityIDs))
	for _, e := range entityIDs {
		keys = append(keys, e.String())
	}
	raw, err := s.countBy(ctx, "entity_id", keys)
	if err != nil {
		return nil, err
	}
	out := make(map[id.EntityID]int, len(raw))
	for k, n := range raw {
		entityID, err := id.ParseEntityID(k)
		if err != nil {
			return nil, fmt.Errorf("parse entity id %q: %w", k, err)
		}
		out[entityID] = n
	}
	return out, nil
}

func (s *Postgres) CountByCitizen(ctx context.Context, citizenIDs []id.UserID) (map[id.UserID]int, error) {
	keys := make([]string, 0, len(citizenIDs))
	for _, u := range citizenIDs {
		keys = append(keys, u.String())
	}
	raw, err := s.countBy(ctx, "citizen_id", keys)
	if err != nil {
		return nil, err
	}
	out := make(map[id.UserID]int, len(raw))
	for k, n := range raw {
		userID, err := id.ParseUserID(k)
		if err != nil {
			return nil, fmt.Errorf("parse user id %q: %w", k, err)
		}
		out[userID] = n
	}
	return out, nil
}

// ListLockExpired returns tracking numbers whose lock ran out before now.
func (s *Postgres) ListLockExpired(ctx context.Context, now time.Time) ([]string, error) {
	var out []string
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &out, `
		SELECT tracking_number FROM complaints
		WHERE status = 'in_progress' AND NOT info_requested
			AND lock_expires_at IS NOT NULL AND lock_expires_at <= $1
		ORDER BY tracking_number
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired locks: %w", err)
	}
	return out, nil
}

func translateWriteErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
	}
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
