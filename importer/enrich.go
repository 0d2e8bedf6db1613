package importer

import (
	"strings"

	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// clientFromRow builds a new client from every identity field present on the row.
// Absent fields stay nil.
func clientFromRow(row ImportRow, tenantId, phoneCountry string) *models.Client {
	c := &models.Client{
		TenantId: tenantId,
		Name:     strings.TrimSpace(row.DisplayName()),
		Status:   models.ClientStatusActive,
		Source:   models.ClientSourceImport,
	}
	for _, f := range identityFields(c) {
		if v := f.value(row, phoneCountry); v != "" {
			*f.dst = utils.NilIfEmpty(v)
		}
	}
	return c
}

// enrichmentFor returns the columns a row can fill on a matched client. Populated
// fields of c are never part of it.
func enrichmentFor(c *models.Client, row ImportRow, phoneCountry string) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, f := range identityFields(c) {
		if *f.dst != nil {
			continue
		}
		if v := f.value(row, phoneCountry); v != "" {
			fields[f.column] = v
		}
	}
	return fields
}

// applyEnrichment copies persisted enrichment fields onto the in-memory client.
func applyEnrichment(c *models.Client, fields map[string]interface{}) {
	for _, f := range identityFields(c) {
		if v, ok := fields[f.column].(string); ok && *f.dst == nil {
			*f.dst = utils.NilIfEmpty(v)
		}
	}
}

type identityField struct {
	column string
	dst    **string
	value  func(row ImportRow, phoneCountry string) string
}

func rowValue(get func(ImportRow) string) func(ImportRow, string) string {
	return func(row ImportRow, _ string) string {
		return strings.TrimSpace(get(row))
	}
}

func identityFields(c *models.Client) []identityField {
	col := models.ClientColumn
	return []identityField{
		{col.CompanyName, &c.CompanyName, rowValue(func(r ImportRow) string { return r.CompanyName })},
		{col.FirstName, &c.FirstName, rowValue(func(r ImportRow) string { return r.FirstName })},
		{col.LastName, &c.LastName, rowValue(func(r ImportRow) string { return r.LastName })},
		{col.TaxId, &c.TaxId, rowValue(func(r ImportRow) string { return r.TaxID })},
		{col.Email, &c.Email, rowValue(func(r ImportRow) string { return strings.ToLower(r.Email) })},
		{col.Phone, &c.Phone, func(r ImportRow, country string) string {
			return utils.NormalizePhoneNumber(r.Phone, country)
		}},
		{col.Address, &c.Address, rowValue(func(r ImportRow) string { return r.Address })},
		{col.City, &c.City, rowValue(func(r ImportRow) string { return r.City })},
		{col.PostalCode, &c.PostalCode, rowValue(func(r ImportRow) string { return r.PostalCode })},
		{col.Country, &c.Country, rowValue(func(r ImportRow) string { return r.Country })},
	}
}
