package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/event-timetable/internal/dto"
)

// Flags shared by the editing commands.
var (
	editContainer string
	editEntry     string
	editPolicy    int
	editStart     string
	editEnd       string
	editDuration  time.Duration
)

var (
	breakTitle       string
	breakDescription string
	scheduleNode     string
	moveDirection    string
	respaceMode      string
	respaceGap       time.Duration
	respaceDay       string
	respaceFit       bool
)

var addBreakCmd = &cobra.Command{
	Use:   "add-break",
	Short: "Add a break to a timetable",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		start, err := parseTime(editStart)
		if err != nil {
			return err
		}
		res, err := a.svc.AddBreak(ctx, dto.AddBreakRequest{
			EventID:         a.eventID,
			Container:       container,
			Title:           breakTitle,
			Description:     breakDescription,
			Start:           start,
			DurationMinutes: int(editDuration / time.Minute),
			Policy:          policyFlag(editPolicy),
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a session block or contribution in a timetable",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		start, err := parseTime(editStart)
		if err != nil {
			return err
		}
		res, err := a.svc.ScheduleNode(ctx, dto.ScheduleNodeRequest{
			EventID:   a.eventID,
			Container: container,
			Node:      scheduleNode,
			Start:     start,
			Policy:    policyFlag(editPolicy),
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an entry from a timetable",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		res, err := a.svc.RemoveEntry(ctx, dto.EntryRefRequest{EventID: a.eventID, Container: container, EntryID: editEntry})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move an entry one step up or down, or to a new start",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		start, err := parseTime(editStart)
		if err != nil {
			return err
		}
		res, err := a.svc.MoveEntry(ctx, dto.MoveEntryRequest{
			EventID:   a.eventID,
			Container: container,
			EntryID:   editEntry,
			Direction: moveDirection,
			Start:     start,
			Policy:    policyFlag(editPolicy),
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var resizeCmd = &cobra.Command{
	Use:   "resize",
	Short: "Change the duration of an entry",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		res, err := a.svc.ResizeEntry(ctx, dto.ResizeEntryRequest{
			EventID:         a.eventID,
			Container:       container,
			EntryID:         editEntry,
			DurationMinutes: int(editDuration / time.Minute),
			Policy:          policyFlag(editPolicy),
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Close the gaps between the entries of a timetable",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		res, err := a.svc.Compact(ctx, dto.ContainerRequest{EventID: a.eventID, Container: container})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Resize a session block to span exactly its entries",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		res, err := a.svc.Fit(ctx, dto.ContainerRequest{EventID: a.eventID, Container: container})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule",
	Short: "Re-space the entries of one day",
	Long: `Re-space the entries of one day of a timetable.

Mode "duration" keeps the starts and stretches each entry up to the next one
minus the gap. Mode "startingTime" keeps the durations and chains the starts
with the gap in between.`,
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		res, err := a.svc.Reschedule(ctx, dto.RescheduleRequest{
			EventID:     a.eventID,
			Container:   container,
			Mode:        respaceMode,
			GapMinutes:  int(respaceGap / time.Minute),
			Day:         respaceDay,
			FitChildren: respaceFit,
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var setDatesCmd = &cobra.Command{
	Use:   "set-dates",
	Short: "Move the start or the end of a container",
	RunE: run(func(ctx context.Context, a *app, out io.Writer) error {
		container, err := a.containerOr(editContainer)
		if err != nil {
			return err
		}
		if (editStart == "") == (editEnd == "") {
			return fmt.Errorf("exactly one of --start or --end is required")
		}
		start, err := parseTime(editStart)
		if err != nil {
			return err
		}
		end, err := parseTime(editEnd)
		if err != nil {
			return err
		}
		res, err := a.svc.SetDates(ctx, dto.SetDatesRequest{
			EventID:   a.eventID,
			Container: container,
			Start:     start,
			End:       end,
			Policy:    policyFlag(editPolicy),
		})
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{addBreakCmd, scheduleCmd, removeCmd, moveCmd, resizeCmd, compactCmd, fitCmd, rescheduleCmd, setDatesCmd} {
		cmd.Flags().StringVar(&editContainer, "container", "", "Container handle (defaults to the conference)")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{addBreakCmd, scheduleCmd, moveCmd, resizeCmd, setDatesCmd} {
		cmd.Flags().IntVar(&editPolicy, "policy", -1, "Boundary policy: 0 none, 1 raise, 2 adapt (default from config)")
	}
	for _, cmd := range []*cobra.Command{addBreakCmd, scheduleCmd, moveCmd, setDatesCmd} {
		cmd.Flags().StringVar(&editStart, "start", "", "Start date, RFC 3339 or \"2006-01-02 15:04\"")
	}
	for _, cmd := range []*cobra.Command{removeCmd, moveCmd, resizeCmd} {
		cmd.Flags().StringVar(&editEntry, "entry", "", "Entry id within the container")
		_ = cmd.MarkFlagRequired("entry")
	}
	for _, cmd := range []*cobra.Command{addBreakCmd, resizeCmd} {
		cmd.Flags().DurationVar(&editDuration, "duration", 0, "Duration, e.g. 15m")
	}

	addBreakCmd.Flags().StringVar(&breakTitle, "title", "", "Break title")
	addBreakCmd.Flags().StringVar(&breakDescription, "description", "", "Break description")
	_ = addBreakCmd.MarkFlagRequired("title")

	scheduleCmd.Flags().StringVar(&scheduleNode, "node", "", "Handle of the block or contribution")
	_ = scheduleCmd.MarkFlagRequired("node")

	moveCmd.Flags().StringVar(&moveDirection, "direction", "", "up or down")
	moveCmd.MarkFlagsMutuallyExclusive("direction", "start")

	rescheduleCmd.Flags().StringVar(&respaceMode, "mode", "startingTime", "duration or startingTime")
	rescheduleCmd.Flags().DurationVar(&respaceGap, "gap", 0, "Gap between entries")
	rescheduleCmd.Flags().StringVar(&respaceDay, "day", "", "Day to re-space, 2006-01-02")
	rescheduleCmd.Flags().BoolVar(&respaceFit, "fit", false, "Shrink session blocks to their entries first")
	_ = rescheduleCmd.MarkFlagRequired("day")

	setDatesCmd.Flags().StringVar(&editEnd, "end", "", "End date, RFC 3339 or \"2006-01-02 15:04\"")
	setDatesCmd.MarkFlagsMutuallyExclusive("start", "end")
}
