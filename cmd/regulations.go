package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jjenkins/bobbot/internal/store"
	"github.com/spf13/cobra"
)

var (
	regulationsType    string
	regulationsPending bool
)

var regulationsCmd = &cobra.Command{
	Use:   "regulations",
	Short: "List stored regulations",
	Long: `List the stored regulations with their conversion state.

Examples:
  # Everything
  ./bobbot regulations

  # Only 내규 documents
  ./bobbot regulations --type 내규

  # Documents still waiting for an HTML page
  ./bobbot regulations --pending`,
	RunE: runRegulations,
}

func init() {
	rootCmd.AddCommand(regulationsCmd)
	regulationsCmd.Flags().StringVarP(&regulationsType, "type", "t", "", "Only list this regulation type")
	regulationsCmd.Flags().BoolVar(&regulationsPending, "pending", false, "Only list documents pending conversion")
}

func runRegulations(cmd *cobra.Command, args []string) error {
	if regulationsType != "" && !model.IsRegulationType(regulationsType) {
		return fmt.Errorf("unknown regulation type %q", regulationsType)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	regs := store.NewRegulationStore(db)

	var list []model.Regulation
	if regulationsPending {
		list, err = regs.ListPendingConversion(cmd.Context(), cfg.Conversion.MaxAttempts)
	} else {
		list, err = regs.List(cmd.Context(), regulationsType)
	}
	if err != nil {
		return err
	}

	if regulationsPending && regulationsType != "" {
		filtered := list[:0]
		for _, r := range list {
			if r.Type.String == regulationsType {
				filtered = append(filtered, r)
			}
		}
		list = filtered
	}

	t := newTable(fmt.Sprintf("Regulations (%d)", len(list)))
	t.AppendHeader(table.Row{"ID", "Type", "Title", "Posted", "HTML", "Attempts", "Last error"})
	for _, r := range list {
		t.AppendRow(table.Row{r.ID, r.Type.String, r.Title, r.CreateDate.Format("2006-01-02"), r.HTMLURL.String, r.ConversionAttempts, r.LastConversionError.String})
	}
	t.Render()
	return nil
}
