package sheets

import (
	"context"

	"splittab/internal/core"
)

// Ports for outbound adapters.
type (
	// BillExporter appends bills to an external spreadsheet, one row
	// per participant share.
	BillExporter interface {
		ExportBills(ctx context.Context, bills []core.Bill) (rows int, err error)
	}
)
