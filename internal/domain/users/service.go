package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pmds/internal/domain/auth"
)

const maxManagerDepth = 64

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter, limit, offset int) ([]User, int, error) {
	items, err := s.store.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, tenantID, userID string) (User, error) {
	return s.store.Get(ctx, tenantID, userID)
}

// Create onboards a user. Password policy is enforced by the caller's
// validator via auth.ValidatePassword.
func (s *Service) Create(ctx context.Context, tenantID string, in Input) (User, error) {
	role := auth.RoleEmployee
	if in.Role != nil && *in.Role != "" {
		role = *in.Role
	}
	if !auth.ValidRole(role) {
		return User{}, ErrInvalidRole
	}
	roleID, err := s.store.RoleIDByName(ctx, tenantID, role)
	if err != nil {
		return User{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return User{}, err
	}

	u := User{TenantID: tenantID, RoleID: roleID, RoleName: role, Status: StatusActive}
	apply(&u, in)
	if u.Username == "" {
		u.Username = strings.Split(u.Email, "@")[0]
	}
	if err := s.checkRefs(ctx, tenantID, u); err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	return s.store.Create(ctx, tenantID, u, hash)
}

// Update applies HR edits; role and status may change here.
func (s *Service) Update(ctx context.Context, tenantID, userID string, in Input) (User, User, error) {
	before, err := s.store.Get(ctx, tenantID, userID)
	if err != nil {
		return User{}, User{}, err
	}
	u := before
	apply(&u, in)
	if in.Role != nil && *in.Role != before.RoleName {
		if !auth.ValidRole(*in.Role) {
			return User{}, User{}, ErrInvalidRole
		}
		roleID, err := s.store.RoleIDByName(ctx, tenantID, *in.Role)
		if err != nil {
			return User{}, User{}, err
		}
		u.RoleID, u.RoleName = roleID, *in.Role
	}
	if in.Status != nil {
		if *in.Status != StatusActive && *in.Status != StatusInactive {
			return User{}, User{}, fmt.Errorf("invalid status %q", *in.Status)
		}
		u.Status = *in.Status
	}
	if err := s.checkRefs(ctx, tenantID, u); err != nil {
		return User{}, User{}, err
	}
	after, err := s.store.Update(ctx, tenantID, u)
	return before, after, err
}

// UpdateProfile is the self-service edit. Reporting line, role and status
// stay with HR.
func (s *Service) UpdateProfile(ctx context.Context, tenantID, userID string, in Input) (User, User, error) {
	in.Role = nil
	in.Status = nil
	in.ManagerID = nil
	in.Email = nil
	in.Username = nil
	in.SalaryLevel = nil
	in.IsOnProbation = nil
	return s.Update(ctx, tenantID, userID, in)
}

// Deactivate is the HR "delete"; users are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, actor auth.UserContext, userID string) error {
	if actor.UserID == userID {
		return ErrCannotDeactivate
	}
	return s.store.SetStatus(ctx, actor.TenantID, userID, StatusInactive)
}

func (s *Service) DirectReports(ctx context.Context, tenantID, managerID string) ([]User, error) {
	return s.store.DirectReports(ctx, tenantID, managerID)
}

func (s *Service) ManagerOf(ctx context.Context, tenantID, userID string) (string, error) {
	return s.store.ManagerOf(ctx, tenantID, userID)
}

// HRUserIDs lists active HR users for broadcast notifications.
func (s *Service) HRUserIDs(ctx context.Context, tenantID string) ([]string, error) {
	return s.store.IDsByRole(ctx, tenantID, auth.RoleHR)
}

func (s *Service) SalaryLevels(ctx context.Context) ([]SalaryLevel, error) {
	return s.store.SalaryLevels(ctx)
}

// ReportsTo walks up the reporting tree from userID looking for managerID.
func (s *Service) ReportsTo(ctx context.Context, tenantID, userID, managerID string) (bool, error) {
	current := userID
	for i := 0; i < maxManagerDepth; i++ {
		next, err := s.store.ManagerOf(ctx, tenantID, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if next == "" {
			return false, nil
		}
		if next == managerID {
			return true, nil
		}
		current = next
	}
	return false, nil
}

func (s *Service) checkRefs(ctx context.Context, tenantID string, u User) error {
	if u.ManagerID != nil && *u.ManagerID != "" {
		if u.ID != "" && *u.ManagerID == u.ID {
			return ErrInvalidManager
		}
		if _, err := s.store.Get(ctx, tenantID, *u.ManagerID); err != nil {
			return fmt.Errorf("manager: %w", err)
		}
		if u.ID != "" {
			cycle, err := s.ReportsTo(ctx, tenantID, *u.ManagerID, u.ID)
			if err != nil {
				return err
			}
			if cycle {
				return ErrInvalidManager
			}
		}
	}
	if u.SalaryLevel != nil {
		ok, err := s.store.SalaryLevelExists(ctx, *u.SalaryLevel)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSalaryLevel
		}
	}
	return nil
}

func apply(u *User, in Input) {
	setString(&u.Email, in.Email)
	setString(&u.Username, in.Username)
	setString(&u.FirstName, in.FirstName)
	setString(&u.LastName, in.LastName)
	setString(&u.Department, in.Department)
	setString(&u.JobTitle, in.JobTitle)
	setString(&u.JobPurpose, in.JobPurpose)
	setString(&u.SchoolDirectorate, in.SchoolDirectorate)
	setString(&u.ManagerPersalNumber, in.ManagerPersalNumber)
	if in.EmployeeID != nil {
		u.EmployeeID = optional(*in.EmployeeID)
	}
	if in.PersalNumber != nil {
		u.PersalNumber = optional(*in.PersalNumber)
	}
	if in.ManagerID != nil {
		u.ManagerID = optional(*in.ManagerID)
	}
	if in.DateOfAppointment != nil {
		u.DateOfAppointment = in.DateOfAppointment
	}
	if in.IsOnProbation != nil {
		u.IsOnProbation = *in.IsOnProbation
	}
	if in.SalaryLevel != nil {
		if *in.SalaryLevel == 0 {
			u.SalaryLevel = nil
		} else {
			level := *in.SalaryLevel
			u.SalaryLevel = &level
		}
	}
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

// optional stores blank identifiers as NULL so unique indexes ignore them.
func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
