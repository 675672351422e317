package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is implemented by every entity kept in a record store.
type Record interface {
	PrimaryKey() uint
	SetPrimaryKey(id uint)
	// Columns returns the writable columns keyed by column name. Values are
	// nil, string or bool so they can be compared with ==.
	Columns() map[string]any
	// FromRow fills the record from spreadsheet cells keyed by column name.
	FromRow(row map[string]string) error
}

// Entity constrains a type parameter to a pointer to a Record struct.
type Entity[T any] interface {
	*T
	Record
}

// Staff represents a staff member
type Staff struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FirstName   string    `gorm:"not null" json:"first_name"`
	LastName    *string   `json:"last_name"`
	Gender      *string   `json:"gender"`
	PhoneNumber *string   `gorm:"column:phonenumber;uniqueIndex" json:"phonenumber"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Staff) TableName() string { return "staff" }

func (s *Staff) PrimaryKey() uint      { return s.ID }
func (s *Staff) SetPrimaryKey(id uint) { s.ID = id }

func (s *Staff) Columns() map[string]any {
	return map[string]any{
		"first_name":  s.FirstName,
		"last_name":   deref(s.LastName),
		"gender":      deref(s.Gender),
		"phonenumber": deref(s.PhoneNumber),
	}
}

func (s *Staff) FromRow(row map[string]string) error {
	s.FirstName = strings.TrimSpace(row["first_name"])
	s.LastName = cell(row, "last_name")
	s.Gender = cell(row, "gender")
	s.PhoneNumber = cell(row, "phonenumber")
	return nil
}

// Student represents a student
type Student struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	FirstName       string    `gorm:"not null" json:"first_name"`
	LastName        *string   `json:"last_name"`
	Gender          *string   `json:"gender"`
	Class           *string   `gorm:"column:class" json:"class"`
	PhysicalAddress *string   `json:"physical_address"`
	Status          bool      `gorm:"not null;default:false" json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Student) TableName() string { return "students" }

func (s *Student) PrimaryKey() uint      { return s.ID }
func (s *Student) SetPrimaryKey(id uint) { s.ID = id }

func (s *Student) Columns() map[string]any {
	return map[string]any{
		"first_name":       s.FirstName,
		"last_name":        deref(s.LastName),
		"gender":           deref(s.Gender),
		"class":            deref(s.Class),
		"physical_address": deref(s.PhysicalAddress),
		"status":           s.Status,
	}
}

func (s *Student) FromRow(row map[string]string) error {
	s.FirstName = strings.TrimSpace(row["first_name"])
	s.LastName = cell(row, "last_name")
	s.Gender = cell(row, "gender")
	s.Class = cell(row, "class")
	s.PhysicalAddress = cell(row, "physical_address")
	s.Status = false
	if raw := strings.TrimSpace(row["status"]); raw != "" {
		status, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid status %q", raw)
		}
		s.Status = status
	}
	return nil
}

// Response is the envelope wrapped around every API reply.
type Response struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Envelope status values.
const (
	StatusSuccess = "Success"
	StatusError   = "Error"
	StatusInfo    = "Info"
)

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// cell returns nil for a missing or blank spreadsheet cell.
func cell(row map[string]string, column string) *string {
	v, ok := row[column]
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// FormatID renders an identifier the way it appears in request paths.
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
