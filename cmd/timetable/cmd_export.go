package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/event-timetable/internal/dto"
	"github.com/noah-isme/event-timetable/internal/service"
)

var (
	exportContainer string
	exportFormat    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a timetable to CSV or iCalendar under EXPORT_DIR",
	RunE:  run(runExport),
}

func init() {
	exportCmd.Flags().StringVar(&exportContainer, "container", "", "Container handle (defaults to the conference)")
	exportCmd.Flags().StringVar(&exportFormat, "format", service.ExportFormatCSV, "csv or ics")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, a *app, out io.Writer) error {
	container, err := a.containerOr(exportContainer)
	if err != nil {
		return err
	}
	res, err := a.svc.Export(ctx, dto.ExportRequest{
		EventID:   a.eventID,
		Container: container,
		Format:    exportFormat,
		Timezone:  tzFlag,
	})
	if err != nil {
		return err
	}
	return printJSON(out, res)
}
