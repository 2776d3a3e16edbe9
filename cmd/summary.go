package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jjenkins/bobbot/internal/service"
)

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func printCrawlSummary(stats *service.CrawlStats) {
	t := newTable("Crawl Summary")
	t.AppendHeader(table.Row{"Boards", "Posts", "Inserted", "Updated", "Unchanged", "Failed boards"})
	t.AppendRow(table.Row{stats.Boards, stats.Posts, stats.Inserted, stats.Updated, stats.Unchanged, len(stats.Failures)})
	t.Render()

	if len(stats.Failures) == 0 {
		return
	}
	f := newTable("Board Failures")
	f.AppendHeader(table.Row{"Board", "Link", "Error"})
	for _, fail := range stats.Failures {
		f.AppendRow(table.Row{fail.Board, fail.Link, fail.Err})
	}
	f.Render()
}

func printConversionSummary(result *service.ConversionResult) {
	t := newTable("Conversion Summary")
	t.AppendHeader(table.Row{"Pending", "Converted", "Skipped", "Failed"})
	t.AppendRow(table.Row{result.Total, result.Converted, result.Skipped, result.Failed})
	t.Render()

	if len(result.Failures) == 0 {
		return
	}
	f := newTable("Not Converted")
	f.AppendHeader(table.Row{"ID", "Title", "Kind", "Reason"})
	for _, fail := range result.Failures {
		f.AppendRow(table.Row{fail.ID, fail.Title, fail.Kind, fail.Reason})
	}
	f.Render()
}
