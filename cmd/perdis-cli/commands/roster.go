package commands

import (
	"fmt"
	"os"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/serviceutil"
	"perdisweb-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(pdfCmd)
}

var rosterCmd = &cobra.Command{
	Use:   "roster <from> <to>",
	Short: "Prints the duty roster for a date range (YYYY-MM-DD or DD.MM.YYYY).",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		from, ok := perdis.ParseDate(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unrecognized date %q\n", args[0])
			os.Exit(1)
		}
		to, ok := perdis.ParseDate(args[1])
		if !ok {
			fmt.Fprintf(os.Stderr, "unrecognized date %q\n", args[1])
			os.Exit(1)
		}

		service, cleanup := openService()
		defer cleanup()

		roster, err := service.GetRange(cmd.Context(), from, to)
		if err != nil {
			serviceutil.Fatal("fetch roster", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Datum", "Linie", "Beginn", "Ende", "Ort"})
		for _, date := range roster.SortedDates() {
			for _, trip := range roster[date] {
				t.AppendRow(table.Row{date, trip.Line, trip.Start, trip.End, trip.Location})
			}
			if len(roster[date]) == 0 {
				t.AppendRow(table.Row{date, "-", "-", "-", "frei"})
			}
		}
		t.Render()
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Prints the duty roster for a single day; defaults to today.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date := timezone.Today()
		if len(args) == 1 {
			date = args[0]
		}
		canonical, ok := perdis.ParseDate(date)
		if !ok {
			fmt.Fprintf(os.Stderr, "unrecognized date %q\n", date)
			os.Exit(1)
		}

		service, cleanup := openService()
		defer cleanup()

		day, err := service.GetDay(cmd.Context(), canonical)
		if err != nil {
			serviceutil.Fatal("fetch day", err)
		}
		if len(day) == 0 {
			fmt.Printf("Keine Dienste am %s.\n", canonical)
			return
		}

		t := newTable()
		t.AppendHeader(table.Row{"Linie", "Beginn", "Ende", "Ort"})
		for _, trip := range day {
			t.AppendRow(table.Row{trip.Line, trip.Start, trip.End, trip.Location})
		}
		t.Render()
	},
}

var pdfOut *string

func init() {
	pdfOut = pdfCmd.Flags().StringP("out", "o", "", "Output file; defaults to <date>.pdf.")
}

var pdfCmd = &cobra.Command{
	Use:   "pdf <date> [-o <file>]",
	Short: "Downloads the printable shift plan for a day.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		canonical, ok := perdis.ParseDate(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unrecognized date %q\n", args[0])
			os.Exit(1)
		}
		out := *pdfOut
		if out == "" {
			out = canonical + ".pdf"
		}

		service, cleanup := openService()
		defer cleanup()

		data, err := service.ShiftPDF(cmd.Context(), canonical)
		if err != nil {
			serviceutil.Fatal("fetch pdf", err)
		}
		err = os.WriteFile(out, data, 0o644)
		if err != nil {
			serviceutil.Fatal("write pdf", err)
		}
		fmt.Printf("%s (%d bytes)\n", out, len(data))
	},
}
