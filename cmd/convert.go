package cmd

import (
	"fmt"

	"github.com/jjenkins/bobbot/internal/store"
	"github.com/spf13/cobra"
)

var convertKeepOriginals bool

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert downloaded regulation attachments to HTML",
	Long: `Convert downloads every stored regulation that has an attachment but no
HTML page yet, converts it with hwp5html (HWP) or pdf2htmlEX in docker
(PDF), and records the page path.

Documents that fail are charged an attempt and retried on later runs until
conversion.max_attempts is reached. A missing converter skips its documents
without charging them.

Examples:
  # Convert everything pending
  ./bobbot convert

  # Keep downloaded originals for inspection
  ./bobbot convert --keep-originals`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().BoolVar(&convertKeepOriginals, "keep-originals", false, "Keep downloaded source files after conversion")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if convertKeepOriginals {
		cfg.Conversion.KeepOriginals = true
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	portal, err := newPortalClient()
	if err != nil {
		return err
	}
	regs := store.NewRegulationStore(db)
	metrics := newMetrics()

	logger.Info("Starting conversion")
	result, err := newPipeline(portal, regs, metrics).Run(ctx)
	if result != nil {
		printConversionSummary(result)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("conversion cancelled")
		}
		return fmt.Errorf("conversion failed: %w", err)
	}

	refreshGauges(ctx, metrics, regs)

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to convert", result.Failed, result.Total)
	}
	return nil
}
