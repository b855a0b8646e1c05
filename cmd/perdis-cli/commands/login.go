package commands

import (
	"fmt"
	"os"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var loginServer *string

func init() {
	loginServer = loginCmd.Flags().String("server", "verkehrs-ag", "Id of the PERDIS server to log into (see 'servers').")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(serversCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Logs into a PERDIS portal and stores the session locally.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var serverUrl string
		for _, p := range perdis.Profiles() {
			if p.Id == *loginServer {
				serverUrl = p.BaseUrl
			}
		}
		if serverUrl == "" {
			fmt.Fprintf(os.Stderr, "unknown server id %q, see 'perdis-cli servers'\n", *loginServer)
			os.Exit(1)
		}

		service, cleanup := openService()
		defer cleanup()

		err := service.Login(cmd.Context(), args[0], args[1], serverUrl)
		if err != nil {
			serviceutil.Fatal("login", err)
		}
		fmt.Println("Erfolgreich angemeldet.")
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drops the stored session and clears the roster cache.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := openService()
		defer cleanup()

		service.Logout(cmd.Context())
		fmt.Println("Abgemeldet.")
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Prints the known PERDIS servers.",
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Id", "Name", "Url"})
		for _, p := range perdis.Profiles() {
			t.AppendRow(table.Row{p.Id, p.DisplayName, p.BaseUrl})
		}
		t.Render()
	},
}
