package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/event-timetable/internal/dto"
	"github.com/noah-isme/event-timetable/internal/timetable"
)

var (
	showContainer string
	notifyLimit   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a timetable grouped by day, with its collisions",
	RunE:  run(runShow),
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List the latest stored boundary notifications",
	RunE:  run(runNotifications),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print operation and cache counters of this run",
	RunE: run(func(_ context.Context, a *app, out io.Writer) error {
		return printJSON(out, a.metrics.Snapshot())
	}),
}

func init() {
	showCmd.Flags().StringVar(&showContainer, "container", "", "Container handle (defaults to the conference)")
	notificationsCmd.Flags().IntVar(&notifyLimit, "limit", 50, "Maximum number of notifications")
	rootCmd.AddCommand(showCmd, notificationsCmd, statsCmd)
}

type showOutput struct {
	EventID    string                                       `json:"eventId"`
	Container  string                                       `json:"container"`
	Days       map[string]map[string]timetable.EntrySummary `json:"days"`
	Collisions [][2]timetable.EntrySummary                  `json:"collisions"`
}

func runShow(ctx context.Context, a *app, out io.Writer) error {
	container, err := a.containerOr(showContainer)
	if err != nil {
		return err
	}
	days, err := a.svc.DayView(ctx, dto.DayViewRequest{EventID: a.eventID, Container: container, Timezone: tzFlag})
	if err != nil {
		return err
	}
	collisions, err := a.svc.Collisions(ctx, dto.ContainerRequest{EventID: a.eventID, Container: container})
	if err != nil {
		return err
	}
	return printJSON(out, showOutput{EventID: a.eventID, Container: container, Days: days, Collisions: collisions})
}

func runNotifications(ctx context.Context, a *app, out io.Writer) error {
	notes, err := a.svc.Notifications(ctx, a.eventID, notifyLimit)
	if err != nil {
		return err
	}
	return printJSON(out, notes)
}
