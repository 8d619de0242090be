package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
)

const adminColumns = `id, name, email, password_hash, role, address, permissions, is_verified, created_at`

func (r *Repository) GetAdmin(ctx context.Context, id int64) (domain.AdminUser, error) {
	admin, err := scanAdminRow(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminUser{}, domain.NewNotFoundError("admin", id)
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("get admin by id: %w", err)
	}
	return admin, nil
}

func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (domain.AdminUser, error) {
	admin, err := scanAdminRow(r.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminUser{}, &domain.NotFoundError{Entity: "admin"}
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("get admin by email: %w", err)
	}
	return admin, nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]domain.AdminUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	items := make([]domain.AdminUser, 0)
	for rows.Next() {
		admin, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		items = append(items, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return items, nil
}

func (r *Repository) CreateAdmin(ctx context.Context, admin domain.AdminUser) (domain.AdminUser, error) {
	return insertAdmin(ctx, r.pool, admin)
}

func (r *Repository) UpdateAdmin(ctx context.Context, id int64, update AdminUpdate) (domain.AdminUser, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Address != nil {
		add("address", *update.Address)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.Permissions != nil {
		add("permissions", update.Permissions.Strings())
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}
	if len(sets) == 0 {
		return r.GetAdmin(ctx, id)
	}

	admin, err := scanAdminRow(r.pool.QueryRow(ctx,
		`UPDATE admins SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+adminColumns,
		args...,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminUser{}, domain.NewNotFoundError("admin", id)
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("update admin: %w", err)
	}
	return admin, nil
}

func (r *Repository) DeleteAdmin(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM admins WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("admin", id)
	}
	return nil
}

func (r *Repository) CountSuperAdmins(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*)::int FROM admins WHERE role = $1",
		string(domain.RoleSuperAdmin),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count superadmins: %w", err)
	}
	return count, nil
}

func (r *Repository) CreateInvitation(ctx context.Context, inv domain.Invitation) (domain.Invitation, error) {
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO email_verifications (email, code, expires_at, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, inv.Email, inv.Code, inv.ExpiresAt, inv.CreatedBy).Scan(&inv.ID, &inv.CreatedAt); err != nil {
		return domain.Invitation{}, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

func (r *Repository) SignupWithInvitation(ctx context.Context, code string, admin domain.AdminUser, now time.Time) (domain.AdminUser, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("begin signup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var invitationID int64
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM email_verifications
		WHERE code = $1 AND email = $2 AND consumed_at IS NULL AND expires_at > $3
		FOR UPDATE
	`, code, admin.Email, now).Scan(&invitationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminUser{}, domain.NewValidationError("invitation code is invalid or expired")
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("load invitation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE email_verifications SET consumed_at = $2 WHERE id = $1",
		invitationID, now,
	); err != nil {
		return domain.AdminUser{}, fmt.Errorf("consume invitation: %w", err)
	}

	created, err := insertAdmin(ctx, tx, admin)
	if err != nil {
		return domain.AdminUser{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.AdminUser{}, fmt.Errorf("commit signup tx: %w", err)
	}
	return created, nil
}

func insertAdmin(ctx context.Context, q querier, admin domain.AdminUser) (domain.AdminUser, error) {
	created, err := scanAdminRow(q.QueryRow(ctx, `
		INSERT INTO admins (name, email, password_hash, role, address, permissions, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+adminColumns,
		admin.Name, admin.Email, admin.PasswordHash, string(admin.Role), admin.Address,
		admin.Permissions.Strings(), admin.IsVerified,
	))
	if isUniqueViolation(err) {
		return domain.AdminUser{}, domain.NewConflictError(fmt.Sprintf("admin %s already exists", admin.Email))
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("create admin: %w", err)
	}
	return created, nil
}

func scanAdminRow(row pgx.Row) (domain.AdminUser, error) {
	var (
		admin domain.AdminUser
		role  string
		perms []string
	)
	if err := row.Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.PasswordHash,
		&role,
		&admin.Address,
		&perms,
		&admin.IsVerified,
		&admin.CreatedAt,
	); err != nil {
		return domain.AdminUser{}, err
	}
	admin.Role = domain.Role(role)
	admin.Permissions = make(domain.Permissions, 0, len(perms))
	for _, p := range perms {
		admin.Permissions = append(admin.Permissions, domain.Permission(p))
	}
	return admin, nil
}

func (r *Repository) LogAction(ctx context.Context, entry domain.ActionEntry) error {
	return logAction(ctx, r.pool, entry)
}

func logAction(ctx context.Context, q querier, entry domain.ActionEntry) error {
	actionType := strings.TrimSpace(entry.ActionType)
	title := strings.TrimSpace(entry.Title)
	if actionType == "" || title == "" {
		return fmt.Errorf("action_type and title are required")
	}
	details := entry.Details
	if details == "" {
		details = "-"
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO actions (admin_email, action_type, title, details)
		VALUES ($1, $2, $3, $4)
	`, entry.AdminEmail, actionType, title, details); err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (r *Repository) ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	limit = normalizeLimit(limit)
	offset = normalizeOffset(offset)
	search = strings.TrimSpace(search)

	rows, err := r.pool.Query(ctx, `
		SELECT action_id, created_at, admin_email, action_type, title, details
		FROM actions
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR details ILIKE '%' || $1 || '%' OR COALESCE(admin_email, '') ILIKE '%' || $1 || '%')
		ORDER BY action_id DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ActionEntry, 0)
	for rows.Next() {
		var (
			row   domain.ActionEntry
			admin sql.NullString
		)
		if err := rows.Scan(&row.ActionID, &row.CreatedAt, &admin, &row.ActionType, &row.Title, &row.Details); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if admin.Valid {
			value := admin.String
			row.AdminEmail = &value
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return items, nil
}

func (r *Repository) CountActions(ctx context.Context, search string) (int, error) {
	search = strings.TrimSpace(search)
	var count int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM actions
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR details ILIKE '%' || $1 || '%' OR COALESCE(admin_email, '') ILIKE '%' || $1 || '%')
	`, search).Scan(&count); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return count, nil
}
