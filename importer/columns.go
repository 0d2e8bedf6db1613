package importer

import (
	"strings"
	"unicode"
)

// Canonical column keys of an import row.
const (
	ColClientName           = "client_name"
	ColCompanyName          = "company_name"
	ColFirstName            = "first_name"
	ColLastName             = "last_name"
	ColTaxID                = "client_vat"
	ColEmail                = "email"
	ColPhone                = "phone"
	ColAddress              = "address"
	ColCity                 = "city"
	ColPostalCode           = "postal_code"
	ColCountry              = "country"
	ColFinancedAmount       = "financed_amount"
	ColMonthlyPayment       = "monthly_payment"
	ColCoefficient          = "coefficient"
	ColMargin               = "margin"
	ColDuration             = "duration"
	ColDate                 = "date"
	ColEquipmentDescription = "equipment_description"
	ColEquipmentQuantity    = "equipment_quantity"
	ColLeaser               = "leaser"
	ColRemarks              = "remarks"
	ColTrackingNumber       = "tracking_number"
)

var columnAliases = map[string][]string{
	ColClientName:           {"client", "name", "nom", "nom_client", "client_nom", "customer", "customer_name"},
	ColCompanyName:          {"company", "societe", "entreprise", "raison_sociale", "nom_societe"},
	ColFirstName:            {"firstname", "prenom"},
	ColLastName:             {"lastname", "nom_de_famille", "surname"},
	ColTaxID:                {"vat", "vat_number", "tva", "numero_tva", "n_tva", "no_tva", "num_tva", "tax_id", "client_tax_id", "btw", "client_tva"},
	ColEmail:                {"e_mail", "mail", "courriel", "client_email"},
	ColPhone:                {"telephone", "tel", "gsm", "mobile", "client_phone"},
	ColAddress:              {"adresse", "street", "rue"},
	ColCity:                 {"ville", "localite", "commune"},
	ColPostalCode:           {"zip", "zip_code", "postcode", "code_postal", "cp"},
	ColCountry:              {"pays"},
	ColFinancedAmount:       {"amount", "montant", "montant_finance", "montant_financement", "financed"},
	ColMonthlyPayment:       {"monthly", "mensualite", "loyer", "loyer_mensuel"},
	ColCoefficient:          {"coef", "coeff"},
	ColMargin:               {"marge"},
	ColDuration:             {"duration_months", "duree", "duree_mois", "months", "mois"},
	ColDate:                 {"offer_date", "date_offre", "start_date", "date_debut", "signature_date", "date_signature"},
	ColEquipmentDescription: {"equipment", "equipements", "materiel", "description"},
	ColEquipmentQuantity:    {"quantity", "quantite", "qty", "nombre", "nb_equipements"},
	ColLeaser:               {"leaser_name", "bailleur", "partner", "financeur"},
	ColRemarks:              {"remarques", "notes", "commentaire", "comments"},
	ColTrackingNumber:       {"contract_number", "numero_contrat", "n_contrat", "reference", "dossier"},
}

var columnIndex = buildColumnIndex()

func buildColumnIndex() map[string]string {
	idx := make(map[string]string)
	for col, aliases := range columnAliases {
		idx[col] = col
		for _, a := range aliases {
			idx[a] = col
		}
	}
	return idx
}

// ColumnFor maps a free-form header ("Numéro TVA", "Montant financé") to its canonical key.
func ColumnFor(header string) (string, bool) {
	col, ok := columnIndex[normalizeHeader(header)]
	return col, ok
}

// normalizeHeader folds accents and case and joins words with '_'.
func normalizeHeader(h string) string {
	h = strings.ToLower(foldAccents(strings.TrimSpace(h)))
	var b strings.Builder
	b.Grow(len(h))
	pendingSep := false
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
