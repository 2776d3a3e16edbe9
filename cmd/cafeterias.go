package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jjenkins/bobbot/internal/extract"
	"github.com/jjenkins/bobbot/internal/store"
	"github.com/spf13/cobra"
)

var cafeteriasCmd = &cobra.Command{
	Use:   "cafeterias",
	Short: "List cafeterias and the name menu uploads resolve to",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := store.NewCafeteriaStore(db).List(cmd.Context())
		if err != nil {
			return err
		}

		locations := extract.NewLocationResolver()
		t := newTable("Cafeterias")
		t.AppendHeader(table.Row{"ID", "Location", "Resolves as", "Lunch"})
		for _, c := range list {
			name, ok := locations.Name(c.ID)
			if !ok {
				name = "(no alias)"
			}
			lunch := ""
			if c.LunchStart.Valid && c.LunchEnd.Valid {
				lunch = c.LunchStart.String + "~" + c.LunchEnd.String
			}
			t.AppendRow(table.Row{c.ID, c.Location, name, lunch})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cafeteriasCmd)
}
