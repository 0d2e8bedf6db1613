// lease-import loads a spreadsheet or JSON export of historical leases into a tenant.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/lease-import -tenant-id <uuid> -billing-entity-id 1 -file leases.xlsx
//
// -dry-run only parses the file and reports rows that would fail validation.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/importer"
	"github.com/mmdatafocus/leasing_backend/leaseimport"
	"github.com/mmdatafocus/leasing_backend/models"
	"github.com/mmdatafocus/leasing_backend/utils"
	"github.com/schollz/progressbar/v3"
)

// replaced in tests
var (
	connectDB    = config.ConnectDatabaseWithRetry
	connectRedis = config.ConnectRedisWithRetry
	obtainLock   = leaseimport.ObtainTenantLock
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command and returns the process exit code. Deferred cleanups, the tenant
// lock release included, run before the caller exits.
func run(args []string) int {
	fs := flag.NewFlagSet("lease-import", flag.ContinueOnError)
	tenantID := fs.String("tenant-id", "", "Required: tenant id")
	billingEntityID := fs.Int("billing-entity-id", 0, "Required: billing entity issuing the imported offers")
	label := fs.String("label", "", "Optional: batch label, a year or date is used as fallback offer date")
	file := fs.String("file", "", "Required: .xlsx, .csv or .json file")
	strategy := fs.String("strategy", "", "Optional: client match strategy (default, strict-tax-id, fuzzy)")
	compensate := fs.Bool("compensate", config.ImportCompensatePartial(), "Void an offer when a later write of its row fails")
	dryRun := fs.Bool("dry-run", false, "Parse and validate rows without writing")
	reportXlsx := fs.String("report-xlsx", "", "Optional: write the report workbook to this path")
	useLock := fs.Bool("lock", true, "Hold the tenant import lock in Redis while importing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 1
	}
	rows, source, err := readRows(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *file, err)
		return 1
	}

	if *dryRun {
		warnings := importer.ValidateRows(rows, *label, time.Now())
		fmt.Printf("rows: %d\n", len(rows))
		for _, w := range warnings {
			fmt.Printf("row %d: %s\n", w.Row, w.Error())
		}
		fmt.Printf("rows failing validation: %d\n", len(warnings))
		return 0
	}

	if strings.TrimSpace(*tenantID) == "" {
		fmt.Fprintln(os.Stderr, "--tenant-id is required")
		return 1
	}
	opts := leaseimport.RunOptions{
		BillingEntityId: *billingEntityID,
		Label:           *label,
		Strategy:        *strategy,
		Compensate:      compensate,
	}
	if err := leaseimport.ValidateOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "invalid options: %v\n", err)
		return 1
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode rows: %v\n", err)
		return 1
	}

	connectDB()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		return 1
	}
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	}

	ctx := utils.SetTenantIdInContext(context.Background(), *tenantID)
	ctx = utils.SetUsernameInContext(ctx, "lease-import")

	if *useLock {
		connectRedis()
		unlock, err := obtainLock(ctx, *tenantID)
		if errors.Is(err, utils.ErrLockNotObtained) {
			fmt.Fprintln(os.Stderr, "another import is running for this tenant")
			return 3
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to obtain tenant lock: %v\n", err)
			return 1
		}
		defer unlock()
	}

	importRun := leaseimport.NewRun(*tenantID, "lease-import", opts)
	importRun.Source = source
	importRun.TriggeredBy = models.ImportTriggeredCli
	// stored so the run can be retried from the API
	importRun.RowsJSON = rowsJSON
	if err := models.CreateImportRun(ctx, importRun); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create import run: %v\n", err)
		return 1
	}

	bar := progressbar.Default(int64(len(rows)), "importing")
	report, runErr := leaseimport.ExecuteRun(ctx, importRun, rows, func(done, total int) {
		_ = bar.Set(done)
	})
	_ = bar.Finish()
	if report == nil {
		fmt.Fprintf(os.Stderr, "import run %d not executed: %v\n", importRun.ID, runErr)
		return 1
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "import run %d finished: %s\n", importRun.ID, importRun.Status)

	if *reportXlsx != "" {
		if err := writeReport(*reportXlsx, report); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			return 1
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", runErr)
		return 1
	}
	return 0
}

func readRows(path string) ([]importer.ImportRow, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var rows []importer.ImportRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, "", err
		}
		return rows, models.ImportSourceJSON, nil
	}
	format, err := importer.FormatFromFilename(path)
	if err != nil {
		return nil, "", err
	}
	rows, err := importer.ReadSheet(bytes.NewReader(data), format)
	if err != nil {
		return nil, "", err
	}
	if format == importer.FormatCsv {
		return rows, models.ImportSourceCsv, nil
	}
	return rows, models.ImportSourceXlsx, nil
}

func writeReport(path string, report *importer.ImportReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := importer.WriteReportXlsx(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
