// Package all registers every storage backend. Blank-import it from a main
// package; the pipeline config then selects by kind.
package all

import (
	_ "purchasereport/internal/storage/mssql"
	_ "purchasereport/internal/storage/postgres"
	_ "purchasereport/internal/storage/sqlite"
)
