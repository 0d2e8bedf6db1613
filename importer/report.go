package importer

// Outcome is what happened to one row.
type Outcome string

const (
	OutcomeFailed          Outcome = "failed"
	OutcomeClientCreated   Outcome = "client_created"
	OutcomeClientLinked    Outcome = "client_linked"
	OutcomeOfferCreated    Outcome = "offer_created"
	OutcomeContractCreated Outcome = "contract_created"
)

type ReportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Step    Step   `json:"-"`
}

// RowOutcome is the per-row trace kept alongside the counters.
type RowOutcome struct {
	Row           int
	Outcome       Outcome
	ClientId      int
	ClientCreated bool
	OfferId       int
	ContractId    int
}

// ImportReport is the result of one batch. It is not modified after Run returns.
type ImportReport struct {
	Success          bool          `json:"success"`
	TotalRows        int           `json:"totalRows"`
	ClientsCreated   int           `json:"clientsCreated"`
	ClientsLinked    int           `json:"clientsLinked"`
	OffersCreated    int           `json:"offersCreated"`
	ContractsCreated int           `json:"contractsCreated"`
	Errors           []ReportError `json:"errors"`
	Rows             []RowOutcome  `json:"-"`
}

func newReport(totalRows int) *ImportReport {
	return &ImportReport{
		TotalRows: totalRows,
		Errors:    []ReportError{},
		Rows:      make([]RowOutcome, 0, totalRows),
	}
}

// record folds one row outcome into the counters. A row that failed after its client was
// resolved still counts the client, and an offer that survived a failed contract still
// counts as an offer.
func (r *ImportReport) record(o RowOutcome, rowErr *RowError) {
	if o.ClientId != 0 {
		if o.ClientCreated {
			r.ClientsCreated++
		} else {
			r.ClientsLinked++
		}
	}
	if o.OfferId != 0 {
		r.OffersCreated++
	}
	if o.ContractId != 0 {
		r.ContractsCreated++
	}
	if rowErr != nil {
		o.Outcome = OutcomeFailed
		r.Errors = append(r.Errors, ReportError{Row: rowErr.Row, Message: rowErr.Error(), Step: rowErr.Step})
	}
	r.Rows = append(r.Rows, o)
}

func (r *ImportReport) abort(err error) {
	r.Errors = append(r.Errors, ReportError{Row: 0, Message: err.Error()})
	r.finish()
}

func (r *ImportReport) finish() {
	r.Success = len(r.Errors) == 0
}
