package service

import (
	"regexp"
	"strings"

	"github.com/juju/errors"
)

// Constraint is a column whose value must be unique across records.
type Constraint struct {
	Column string
	Label  string // human name used in conflict messages
}

// Schema describes one record type served by a Service.
type Schema struct {
	// Entity is the capitalised name used in messages ("Staff").
	Entity string
	// Noun is the lower case name used in messages ("staff").
	Noun string
	// Collection names the table, or key space, holding the records.
	Collection string
	// Columns lists the writable columns in spreadsheet order.
	Columns  []string
	Required []string
	Unique   []Constraint
	// FilterColumn is matched by the list filter.
	FilterColumn string
	// ValidateID, when set, checks the identifier before an update.
	ValidateID func(id string) error
}

// UniqueColumns returns the column names of the unique constraints.
func (s Schema) UniqueColumns() []string {
	cols := make([]string, 0, len(s.Unique))
	for _, u := range s.Unique {
		cols = append(cols, u.Column)
	}
	return cols
}

// StaffSchema describes staff records. Phone numbers are unique.
var StaffSchema = Schema{
	Entity:       "Staff",
	Noun:         "staff",
	Collection:   "staff",
	Columns:      []string{"first_name", "last_name", "gender", "phonenumber"},
	Required:     []string{"first_name"},
	Unique:       []Constraint{{Column: "phonenumber", Label: "phone number"}},
	FilterColumn: "first_name",
}

// StudentSchema describes student records. Only student updates check the
// identifier format; deletes and staff operations accept any identifier and
// report unknown ones as not found.
var StudentSchema = Schema{
	Entity:       "Student",
	Noun:         "student",
	Collection:   "students",
	Columns:      []string{"first_name", "last_name", "gender", "class", "physical_address", "status"},
	Required:     []string{"first_name"},
	FilterColumn: "first_name",
	ValidateID:   validateAlphanumericID,
}

var alphanumeric = regexp.MustCompile(`^[0-9a-zA-Z]+$`)

func validateAlphanumericID(id string) error {
	if !alphanumeric.MatchString(id) {
		return errors.NewNotValid(nil, "Invalid ID format")
	}
	return nil
}

// humanize turns a column name into a label: "first_name" -> "First Name".
func humanize(column string) string {
	words := strings.Split(column, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
