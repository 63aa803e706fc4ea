package users

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"-"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	EmployeeID          *string    `json:"employeeId"`
	PersalNumber        *string    `json:"persalNumber"`
	Department          string     `json:"department"`
	JobTitle            string     `json:"jobTitle"`
	JobPurpose          string     `json:"jobPurpose"`
	SchoolDirectorate   string     `json:"schoolDirectorate"`
	DateOfAppointment   *time.Time `json:"dateOfAppointment,omitempty"`
	IsOnProbation       bool       `json:"isOnProbation"`
	ManagerID           *string    `json:"managerId"`
	ManagerPersalNumber string     `json:"managerPersalNumber"`
	SalaryLevel         *int       `json:"salaryLevel"`
	RoleID              string     `json:"roleId"`
	RoleName            string     `json:"role"`
	Status              string     `json:"status"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// FullName falls back to the username when no name is recorded.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u User) String() string {
	id := u.Username
	if u.PersalNumber != nil && strings.TrimSpace(*u.PersalNumber) != "" {
		id = *u.PersalNumber
	}
	return fmt.Sprintf("%s (%s)", u.FullName(), id)
}

// ProfileComplete reports whether the user can enter a performance agreement.
func (u User) ProfileComplete() bool {
	return nonEmpty(u.EmployeeID) && nonEmpty(u.PersalNumber)
}

func nonEmpty(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// Summary is the compact form embedded in other resources.
type Summary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PersalNumber *string `json:"persalNumber,omitempty"`
	Display      string  `json:"display"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.FullName(), Email: u.Email, PersalNumber: u.PersalNumber, Display: u.String()}
}

type SalaryLevel struct {
	ID            string `json:"id" yaml:"-"`
	Level         int    `json:"level" yaml:"level"`
	TypicalTitles string `json:"typicalTitles" yaml:"typical_titles"`
	Notes         string `json:"notes" yaml:"notes"`
}

func (l SalaryLevel) String() string {
	return fmt.Sprintf("Level %d - %s", l.Level, l.TypicalTitles)
}

type ListFilter struct {
	Role       string
	Department string
	ManagerID  string
	Status     string
	Search     string
}

// Input carries create and HR update fields. Nil pointers leave values unchanged on update.
type Input struct {
	Email               *string    `json:"email"`
	Username            *string    `json:"username"`
	Password            string     `json:"password,omitempty"`
	FirstName           *string    `json:"firstName"`
	LastName            *string    `json:"lastName"`
	EmployeeID          *string    `json:"employeeId"`
	PersalNumber        *string    `json:"persalNumber"`
	Department          *string    `json:"department"`
	JobTitle            *string    `json:"jobTitle"`
	JobPurpose          *string    `json:"jobPurpose"`
	SchoolDirectorate   *string    `json:"schoolDirectorate"`
	DateOfAppointment   *time.Time `json:"-"`
	IsOnProbation       *bool      `json:"isOnProbation"`
	ManagerID           *string    `json:"managerId"`
	ManagerPersalNumber *string    `json:"managerPersalNumber"`
	SalaryLevel         *int       `json:"salaryLevel"`
	Role                *string    `json:"role"`
	Status              *string    `json:"status"`
}
