package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"perdisweb-backend/lib/kvstore"
	"perdisweb-backend/lib/serviceutil"
	"perdisweb-backend/services/dienstplan"
	"perdisweb-backend/services/dienstplan/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var dataDir *string

var rootCmd = &cobra.Command{
	Use:   "perdis-cli",
	Short: "perdis-cli talks to a PERDIS duty roster portal from the terminal.",
}

func init() {
	dataDir = rootCmd.PersistentFlags().String("data", ".perdis", "Directory for the login record and roster cache.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService wires the sqlite login record and the badger roster
// cache under the data directory. The returned cleanup must run
// before the process exits or badger will need log replay next time.
func openService() (*dienstplan.Service, func()) {
	err := os.MkdirAll(*dataDir, 0o755)
	if err != nil {
		serviceutil.Fatal("create data dir", err)
	}

	database, err := db.Open(filepath.Join(*dataDir, "dienstplan.db"))
	if err != nil {
		serviceutil.Fatal("open login database", err)
	}
	badgerDb, err := kvstore.OpenBadger(filepath.Join(*dataDir, "cache"))
	if err != nil {
		serviceutil.Fatal("open roster cache", err)
	}

	service := dienstplan.NewService(database, kvstore.NewBadgerStore(badgerDb), dienstplan.Options{})
	return service, func() {
		badgerDb.Close()
		database.Close()
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}
