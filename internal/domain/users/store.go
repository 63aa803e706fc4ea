package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userSelect = `
    SELECT u.id, u.tenant_id, u.email, u.username, u.first_name, u.last_name, u.employee_id, u.persal_number,
           u.department, u.job_title, u.job_purpose, u.school_directorate, u.date_of_appointment, u.is_on_probation,
           u.manager_id, u.manager_persal_number, sl.level, u.role_id, r.name, u.status, u.last_login, u.created_at, u.updated_at
    FROM users u
    JOIN roles r ON r.id = u.role_id
    LEFT JOIN salary_levels sl ON sl.id = u.salary_level_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.EmployeeID, &u.PersalNumber,
		&u.Department, &u.JobTitle, &u.JobPurpose, &u.SchoolDirectorate, &u.DateOfAppointment, &u.IsOnProbation,
		&u.ManagerID, &u.ManagerPersalNumber, &u.SalaryLevel, &u.RoleID, &u.RoleName, &u.Status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func listWhere(tenantID string, filter ListFilter) (string, []any) {
	where := " WHERE u.tenant_id = $1"
	args := []any{tenantID}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where += fmt.Sprintf(" AND r.name = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where += fmt.Sprintf(" AND u.department = $%d", len(args))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		where += fmt.Sprintf(" AND u.manager_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND u.status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (u.first_name ILIKE $%[1]d OR u.last_name ILIKE $%[1]d OR u.email ILIKE $%[1]d OR u.username ILIKE $%[1]d OR u.persal_number ILIKE $%[1]d)", len(args))
	}
	return where, args
}

func (s *Store) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int) ([]User, error) {
	where, args := listWhere(tenantID, filter)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, userSelect+where+fmt.Sprintf(" ORDER BY u.last_name, u.first_name, u.username LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, tenantID string, filter ListFilter) (int, error) {
	where, args := listWhere(tenantID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users u JOIN roles r ON r.id = u.role_id"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) Get(ctx context.Context, tenantID, userID string) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, userSelect+" WHERE u.tenant_id = $1 AND u.id = $2", tenantID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) Create(ctx context.Context, tenantID string, u User, passwordHash string) (User, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (tenant_id, role_id, email, username, password_hash, first_name, last_name, employee_id, persal_number,
                       department, job_title, job_purpose, school_directorate, date_of_appointment, is_on_probation,
                       manager_id, manager_persal_number, salary_level_id, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
            (SELECT id FROM salary_levels WHERE level = $18), $19)
    RETURNING id
  `, tenantID, u.RoleID, u.Email, u.Username, passwordHash, u.FirstName, u.LastName, u.EmployeeID, u.PersalNumber,
		u.Department, u.JobTitle, u.JobPurpose, u.SchoolDirectorate, u.DateOfAppointment, u.IsOnProbation,
		u.ManagerID, u.ManagerPersalNumber, u.SalaryLevel, u.Status).Scan(&id)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return s.Get(ctx, tenantID, id)
}

func (s *Store) Update(ctx context.Context, tenantID string, u User) (User, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users
    SET role_id = $3, email = $4, username = $5, first_name = $6, last_name = $7, employee_id = $8, persal_number = $9,
        department = $10, job_title = $11, job_purpose = $12, school_directorate = $13, date_of_appointment = $14,
        is_on_probation = $15, manager_id = $16, manager_persal_number = $17,
        salary_level_id = (SELECT id FROM salary_levels WHERE level = $18), status = $19, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, u.ID, u.RoleID, u.Email, u.Username, u.FirstName, u.LastName, u.EmployeeID, u.PersalNumber,
		u.Department, u.JobTitle, u.JobPurpose, u.SchoolDirectorate, u.DateOfAppointment,
		u.IsOnProbation, u.ManagerID, u.ManagerPersalNumber, u.SalaryLevel, u.Status)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return s.Get(ctx, tenantID, u.ID)
}

func (s *Store) SetStatus(ctx context.Context, tenantID, userID, status string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE users SET status = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2", tenantID, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RoleIDByName(ctx context.Context, tenantID, role string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM roles WHERE tenant_id = $1 AND name = $2", tenantID, role).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidRole
	}
	return id, err
}

func (s *Store) ManagerOf(ctx context.Context, tenantID, userID string) (string, error) {
	var managerID *string
	err := s.DB.QueryRow(ctx, "SELECT manager_id FROM users WHERE tenant_id = $1 AND id = $2", tenantID, userID).Scan(&managerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil || managerID == nil {
		return "", err
	}
	return *managerID, nil
}

func (s *Store) DirectReports(ctx context.Context, tenantID, managerID string) ([]User, error) {
	rows, err := s.DB.Query(ctx, userSelect+" WHERE u.tenant_id = $1 AND u.manager_id = $2 AND u.status = 'active' ORDER BY u.last_name, u.first_name", tenantID, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) IDsByRole(ctx context.Context, tenantID, role string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id
    FROM users u
    JOIN roles r ON r.id = u.role_id
    WHERE u.tenant_id = $1 AND r.name = $2 AND u.status = 'active'
  `, tenantID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SalaryLevels(ctx context.Context) ([]SalaryLevel, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, level, typical_titles, notes FROM salary_levels ORDER BY level")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SalaryLevel{}
	for rows.Next() {
		var l SalaryLevel
		if err := rows.Scan(&l.ID, &l.Level, &l.TypicalTitles, &l.Notes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SalaryLevelExists(ctx context.Context, level int) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM salary_levels WHERE level = $1)", level).Scan(&exists)
	return exists, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
