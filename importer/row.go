package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ImportRow is one spreadsheet line. Values are kept as given; parsing happens during processing.
type ImportRow struct {
	ClientName           string
	CompanyName          string
	FirstName            string
	LastName             string
	TaxID                string
	Email                string
	Phone                string
	Address              string
	City                 string
	PostalCode           string
	Country              string
	FinancedAmount       string
	MonthlyPayment       string
	Coefficient          string
	Margin               string
	Duration             string
	Date                 string
	EquipmentDescription string
	EquipmentQuantity    string
	Leaser               string
	Remarks              string
	TrackingNumber       string

	// Extra holds columns that map to no known field.
	Extra map[string]string
}

// NewImportRow builds a row from header -> value pairs, resolving header aliases.
// When two headers map to the same field the first non-empty value wins, headers taken in
// lexical order.
func NewImportRow(fields map[string]string) ImportRow {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var row ImportRow
	for _, k := range keys {
		row.set(k, fields[k])
	}
	return row
}

func (r *ImportRow) set(header, value string) {
	value = strings.TrimSpace(value)
	col, ok := ColumnFor(header)
	if !ok {
		if value == "" || strings.TrimSpace(header) == "" {
			return
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[strings.TrimSpace(header)] = value
		return
	}
	if dst := r.field(col); dst != nil && *dst == "" {
		*dst = value
	}
}

func (r *ImportRow) field(col string) *string {
	switch col {
	case ColClientName:
		return &r.ClientName
	case ColCompanyName:
		return &r.CompanyName
	case ColFirstName:
		return &r.FirstName
	case ColLastName:
		return &r.LastName
	case ColTaxID:
		return &r.TaxID
	case ColEmail:
		return &r.Email
	case ColPhone:
		return &r.Phone
	case ColAddress:
		return &r.Address
	case ColCity:
		return &r.City
	case ColPostalCode:
		return &r.PostalCode
	case ColCountry:
		return &r.Country
	case ColFinancedAmount:
		return &r.FinancedAmount
	case ColMonthlyPayment:
		return &r.MonthlyPayment
	case ColCoefficient:
		return &r.Coefficient
	case ColMargin:
		return &r.Margin
	case ColDuration:
		return &r.Duration
	case ColDate:
		return &r.Date
	case ColEquipmentDescription:
		return &r.EquipmentDescription
	case ColEquipmentQuantity:
		return &r.EquipmentQuantity
	case ColLeaser:
		return &r.Leaser
	case ColRemarks:
		return &r.Remarks
	case ColTrackingNumber:
		return &r.TrackingNumber
	}
	return nil
}

// Fields returns the non-empty values keyed by canonical column, plus Extra.
func (r ImportRow) Fields() map[string]string {
	out := make(map[string]string)
	for col := range columnAliases {
		if v := *r.field(col); v != "" {
			out[col] = v
		}
	}
	for k, v := range r.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// DisplayName is the name a created client gets.
func (r ImportRow) DisplayName() string {
	if r.ClientName != "" {
		return r.ClientName
	}
	if r.CompanyName != "" {
		return r.CompanyName
	}
	return r.personalName()
}

// NameKeys are the canonical names a row can match a client by, most specific first.
func (r ImportRow) NameKeys() []string {
	return canonicalKeys(r.CompanyName, r.ClientName, r.personalName())
}

func (r ImportRow) personalName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func canonicalKeys(names ...string) []string {
	keys := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		k := CanonicalName(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func (r ImportRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// UnmarshalJSON accepts an object whose values are strings, numbers, booleans or null.
func (r *ImportRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("import row must be a JSON object")
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = fmt.Sprintf("%t", val)
		default:
			return fmt.Errorf("import row field %q has unsupported type %T", k, v)
		}
	}
	*r = NewImportRow(fields)
	return nil
}
