package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/crewsync-api/internal/models"
)

type operator interface {
	ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error)
	ReconcileOrganizer(ctx context.Context, organizerID string) (*models.OrganizerReconcileReport, error)
	FindDuplicates(ctx context.Context, eventID string) ([]models.DuplicateGroup, error)
	Occupancy(ctx context.Context, shiftID string) (*models.ShiftOccupancy, error)
}

// reconcileCmd removes duplicate records and restores capacity for one event or for every
// event of an organizer.
func reconcileCmd(ops func() operator) *cobra.Command {
	var eventID, organizerID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove duplicate assignments and release over-capacity placements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (eventID == "") == (organizerID == "") {
				return errors.New("exactly one of --event or --organizer is required")
			}
			out := cmd.OutOrStdout()
			if eventID != "" {
				report, err := ops().ReconcileEvent(cmd.Context(), eventID)
				if err != nil {
					return fmt.Errorf("failed to reconcile event %s: %w", eventID, err)
				}
				printReport(out, report)
				return nil
			}

			report, err := ops().ReconcileOrganizer(cmd.Context(), organizerID)
			if report != nil {
				for _, r := range report.Events {
					printReport(out, r)
				}
				fmt.Fprintf(out, "\nTotal: %d events, %d records removed, %d placements released\n",
					len(report.Events), report.Total.Removed, report.Total.Unplaced)
			}
			if err != nil {
				return fmt.Errorf("reconcile stopped early for organizer %s: %w", organizerID, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "Event ID to reconcile")
	cmd.Flags().StringVar(&organizerID, "organizer", "", "Organizer whose events are reconciled")
	return cmd
}

func duplicatesCmd(ops func() operator) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List volunteers holding more than one record for an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := ops().FindDuplicates(cmd.Context(), eventID)
			if err != nil {
				return fmt.Errorf("failed to find duplicates: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d duplicate groups:\n\n", len(groups))
			for _, g := range groups {
				flag := ""
				if g.Ambiguous {
					flag = " [ambiguous]"
				}
				fmt.Fprintf(out, "- %s keep %s (shift %q), remove %d%s\n",
					g.VolunteerID, g.Keep.ID, g.Keep.ShiftID, len(g.Remove), flag)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "Event ID")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func occupancyCmd(ops func() operator) *cobra.Command {
	var shiftID string
	cmd := &cobra.Command{
		Use:   "occupancy",
		Short: "Show the live occupancy of a shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			occ, err := ops().Occupancy(cmd.Context(), shiftID)
			if err != nil {
				return fmt.Errorf("failed to read occupancy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d occupied, %d available\n",
				occ.ShiftID, occ.Occupied, occ.Capacity, occ.Available)
			return nil
		},
	}
	cmd.Flags().StringVar(&shiftID, "shift", "", "Shift ID")
	_ = cmd.MarkFlagRequired("shift")
	return cmd
}

func printReport(out io.Writer, r models.ReconcileReport) {
	fmt.Fprintf(out, "%s: %d duplicate groups, %d records removed, %d over-capacity entries, %d placements released, %d joins trimmed\n",
		r.EventID, r.DuplicateGroups, r.Removed, r.OverCapacity, r.Unplaced, r.Trimmed)
	for _, v := range r.Ambiguous {
		fmt.Fprintf(out, "  ambiguous: %s\n", v)
	}
}
