package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/coordinator"
	"github.com/signalnine/autoback/internal/protocol"
)

var (
	resultsDB       string
	resultsHost     string
	resultsLimit    int
	resultsFailures bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List reports received by the coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := resultsDB
		if dbPath == "" {
			cfg, err := config.LoadCoordinatorConfig(configPath)
			if err != nil {
				return err
			}
			dbPath = cfg.DBPath
		}

		db, err := coordinator.NewDB(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		var reports []protocol.StoredReport
		switch {
		case resultsHost != "":
			reports, err = db.QueryByHostname(resultsHost, resultsLimit)
		case resultsFailures:
			reports, err = db.QueryFailures(resultsLimit)
		default:
			reports, err = db.QueryRecent(resultsLimit)
		}
		if err != nil {
			return err
		}

		counts, err := db.OutcomeCounts()
		if err != nil {
			return err
		}

		printReports(os.Stdout, reports, time.Now())
		fmt.Printf("\n%d success, %d failure\n", counts[protocol.Success.String()], counts[protocol.Failure.String()])
		return nil
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsDB, "db", "", "coordinator database (default: db_path from config)")
	resultsCmd.Flags().StringVar(&resultsHost, "host", "", "only reports from this host")
	resultsCmd.Flags().IntVarP(&resultsLimit, "limit", "n", 20, "maximum number of reports")
	resultsCmd.Flags().BoolVar(&resultsFailures, "failures", false, "only FAILURE reports")
}

func printReports(w io.Writer, reports []protocol.StoredReport, now time.Time) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports")
		return
	}

	lines := []string{"Received | Host | Outcome | From"}
	for _, r := range reports {
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %s",
			humanize.RelTime(r.ReceivedAt, now, "ago", "from now"), r.Hostname, r.Outcome, r.RemoteAddr))
	}
	fmt.Fprintln(w, columnize.SimpleFormat(lines))
}
