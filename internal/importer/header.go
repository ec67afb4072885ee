package importer

import "strings"

// Strategy selects how values from multiple physical columns mapping to
// the same canonical field are accumulated for one row.
type Strategy int

const (
	// Concatenate joins non-blank values in column order with a single
	// space. Inconsistent exports frequently carry duplicate columns
	// (two "Notes" columns); joining preserves their data.
	Concatenate Strategy = iota
	// Collect keeps every non-blank value in column order for later
	// disambiguation instead of joining them.
	Collect
)

// Field defines one canonical lead attribute and the source-header
// spellings that resolve to it.
type Field struct {
	Name     string
	Strategy Strategy
	Aliases  []string
}

// fields is the fixed alias table. Order matters: the first field whose
// alias list contains a header wins. Spellings mirror the exports seen in
// production; matching is case-insensitive after trimming.
// "Military Status" is deliberately absent; only the branch is kept.
var fields = []Field{
	{Name: "first_name", Aliases: []string{"first_name", "First Name", "first", "fname", "First"}},
	{Name: "last_name", Aliases: []string{"last_name", "Last Name", "last", "lname", "Last"}},
	{Name: "phone", Aliases: []string{
		"phone", "Phone", "phone_number", "Phone Number", "mobile", "Mobile",
		"Phone #", "Primary Phone", "Cell", "Cell Phone", "Telephone",
		"Best Phone", "Phone1", "Phone 1",
	}},
	{Name: "email", Aliases: []string{"email", "Email", "e-mail", "Email Address"}},
	{Name: "state", Aliases: []string{"state", "State", "RR State"}},
	{Name: "city", Aliases: []string{"city", "City"}},
	{Name: "zip", Aliases: []string{"zip", "Zip", "zipcode", "Zip Code", "postal", "Postal Code"}},
	{Name: "age", Aliases: []string{"age", "Age"}},
	{Name: "dob", Aliases: []string{
		"dob", "DOB", "D.O.B", "D O B", "Date of Birth", "date of birth",
		"Birthdate", "Birth Date", "date_of_birth", "DateOfBirth",
	}},
	{Name: "address", Aliases: []string{
		"address", "Address", "Street", "Street Address", "Home Address",
		"Mailing Address", "Residential Address", "Address 1", "Address1",
	}},
	{Name: "military_branch", Aliases: []string{"Military Branch", "Military", "Branch", "Service Branch"}},
	{Name: "beneficiary_name", Strategy: Collect, Aliases: []string{"beneficiary", "Beneficiary", "beneficiary_name", "Beneficiary Name"}},
	{Name: "lead_type", Aliases: []string{"lead_type", "Lead Type", "Type", "Product"}},
	{Name: "notes", Aliases: []string{"notes", "Notes"}},
}

// fieldIndex maps lowercased alias -> field, built once at init.
var fieldIndex = func() map[string]*Field {
	idx := make(map[string]*Field)
	for i := range fields {
		for _, a := range fields[i].Aliases {
			key := strings.ToLower(a)
			if _, ok := idx[key]; !ok {
				idx[key] = &fields[i]
			}
		}
	}
	return idx
}()

// ResolveHeader maps one source header cell to its canonical field.
// Unknown headers return nil; they are dropped, not an error.
func ResolveHeader(h string) *Field {
	return fieldIndex[strings.ToLower(strings.TrimSpace(h))]
}

// MapHeaders resolves a full header row. The returned slice is positional:
// entry i is the canonical field for column i, or nil for unmapped columns.
func MapHeaders(headers []string) []*Field {
	mapped := make([]*Field, len(headers))
	for i, h := range headers {
		mapped[i] = ResolveHeader(h)
	}
	return mapped
}
