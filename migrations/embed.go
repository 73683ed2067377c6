package migrations

import "embed"

// FS holds the SQL migrations applied at start-up, in file name order.
//
//go:embed *.sql
var FS embed.FS
