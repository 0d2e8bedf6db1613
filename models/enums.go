package models

const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

const (
	ClientSourceImport = "import"
	ClientSourceManual = "manual"
)

const (
	OfferStatusAccepted = "accepted"
	OfferStatusVoid     = "void"
)

const (
	OfferTypeHistoricalImport = "historical_import"
	OfferTypeStandard         = "standard"
)

const (
	ContractStatusActive = "active"
)

const (
	ImportRunStatusQueued  = "queued"
	ImportRunStatusRunning = "running"
	ImportRunStatusSuccess = "success"
	ImportRunStatusFailed  = "failed"
	ImportRunStatusPartial = "partial"
)

const (
	ImportSourceJSON = "json"
	ImportSourceXlsx = "xlsx"
	ImportSourceCsv  = "csv"
)

const (
	ImportTriggeredManual = "manual"
	ImportTriggeredRetry  = "retry"
	ImportTriggeredCli    = "cli"
)

// IsTerminalImportRunStatus reports whether a run has already been processed.
func IsTerminalImportRunStatus(status string) bool {
	return status == ImportRunStatusSuccess || status == ImportRunStatusFailed || status == ImportRunStatusPartial
}
