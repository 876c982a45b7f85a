package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrutineer/internal/booking"
	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/store"
)

const dateLayout = "2006-01-02"

func newTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Inspection type commands",
	}
	cmd.AddCommand(newTypeListCmd())
	return cmd
}

func newTypeListCmd() *cobra.Command {
	var (
		configPath string
		byKey      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspection types and their prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypeList(cmd, configPath, byKey)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().BoolVar(&byKey, "by-key", false, "order by key instead of sort order")
	return cmd
}

func runTypeList(cmd *cobra.Command, configPath string, byKey bool) error {
	_, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	order := store.OrderBySortOrder
	if byKey {
		order = store.OrderByKey
	}
	types, err := repo.ListInspectionTypes(cmd.Context(), order)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(types) == 0 {
		fmt.Fprintln(out, "No inspection types found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tNAME\tMIN\tLANES\tREQUIRES\tACTIVE")
	for _, t := range types {
		req := strings.Join(t.PrerequisiteKeys(), ",")
		if req == "" {
			req = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%t\n",
			t.ID, t.Key, t.Name, t.DurationMinutes, t.ConcurrentSlots, req, t.Active)
	}
	return w.Flush()
}

// resolveType accepts an inspection type ID or key.
func resolveType(ctx context.Context, repo store.Repository, ref string) (*models.InspectionType, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return repo.GetInspectionType(ctx, uint(id))
	}
	types, err := repo.ListInspectionTypes(ctx, store.OrderByKey)
	if err != nil {
		return nil, err
	}
	for i := range types {
		if types[i].Key == ref {
			return &types[i], nil
		}
	}
	return nil, fmt.Errorf("unknown inspection type %q", ref)
}

func today() string {
	return time.Now().Format(dateLayout)
}

func newSlotsCmd() *cobra.Command {
	var (
		configPath string
		teamID     uint
		typeRef    string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show bookable slots for a team",
		Long:  "Lists the (start, lane) pairs the team could book for an inspection type on a date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = today()
			}
			return runSlots(cmd, configPath, teamID, typeRef, date)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().UintVar(&teamID, "team", 0, "team ID (required)")
	cmd.Flags().StringVar(&typeRef, "type", "", "inspection type ID or key (required)")
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.MarkFlagRequired("team")
	cmd.MarkFlagRequired("type")
	return cmd
}

func runSlots(cmd *cobra.Command, configPath string, teamID uint, typeRef, date string) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	it, err := resolveType(ctx, repo, typeRef)
	if err != nil {
		return err
	}
	cands, err := newBookingService(cfg, repo).Candidates(ctx, teamID, it.ID, date)
	if err != nil {
		return explain(err)
	}

	out := cmd.OutOrStdout()
	if len(cands) == 0 {
		fmt.Fprintf(out, "No free slots for %s on %s.\n", it.Key, date)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tLANE")
	for _, c := range cands {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.StartTime, c.EndTime, c.ResourceIndex)
	}
	return w.Flush()
}

func newEligibilityCmd() *cobra.Command {
	var (
		configPath string
		teamID     uint
		typeRef    string
	)

	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Check whether a team may book an inspection type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEligibility(cmd, configPath, teamID, typeRef)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().UintVar(&teamID, "team", 0, "team ID (required)")
	cmd.Flags().StringVar(&typeRef, "type", "", "inspection type ID or key (required)")
	cmd.MarkFlagRequired("team")
	cmd.MarkFlagRequired("type")
	return cmd
}

func runEligibility(cmd *cobra.Command, configPath string, teamID uint, typeRef string) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	it, err := resolveType(ctx, repo, typeRef)
	if err != nil {
		return err
	}
	res, err := newBookingService(cfg, repo).Eligibility(ctx, teamID, it.ID)
	if err != nil {
		return explain(err)
	}
	out := cmd.OutOrStdout()
	if res.Eligible {
		fmt.Fprintf(out, "Team %d is eligible for %s.\n", teamID, it.Key)
		return nil
	}
	fmt.Fprintf(out, "Team %d is not eligible for %s: %s\n", teamID, it.Key, res.Reason)
	return nil
}

func newBookCmd() *cobra.Command {
	var (
		configPath string
		req        booking.Request
		typeRef    string
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an inspection slot",
		Long: `Books the first free lane at the requested start time. If the lane is
taken concurrently the booking is retried against a fresh view of the day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Date == "" {
				req.Date = today()
			}
			return runBook(cmd, configPath, typeRef, req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().UintVar(&req.TeamID, "team", 0, "team ID (required)")
	cmd.Flags().StringVar(&typeRef, "type", "", "inspection type ID or key (required)")
	cmd.Flags().StringVar(&req.Date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.StartTime, "start", "", "start time HH:MM (required)")
	cmd.MarkFlagRequired("team")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("start")
	return cmd
}

func runBook(cmd *cobra.Command, configPath, typeRef string, req booking.Request) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	it, err := resolveType(ctx, repo, typeRef)
	if err != nil {
		return err
	}
	req.TypeID = it.ID

	b, err := newBookingService(cfg, repo).Book(ctx, req)
	if err != nil {
		return explain(err)
	}
	kind := "Booked"
	if b.IsRescrutineering {
		kind = "Booked rescrutineering"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s for team %d: %s %s-%s lane %d (booking %d)\n",
		kind, it.Key, b.TeamID, b.Date, b.StartTime, b.EndTime, b.ResourceIndex, b.ID)
	return nil
}

func newBookingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Inspect and move bookings",
	}
	cmd.AddCommand(newBookingListCmd())
	cmd.AddCommand(newBookingStatusCmd())
	cmd.AddCommand(newBookingReopenCmd())
	return cmd
}

func newBookingListCmd() *cobra.Command {
	var (
		configPath string
		filter     store.BookingFilter
		typeRef    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingList(cmd, configPath, typeRef, filter)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	cmd.Flags().StringVar(&filter.Date, "date", "", "filter by date YYYY-MM-DD")
	cmd.Flags().StringVar(&typeRef, "type", "", "filter by inspection type ID or key")
	cmd.Flags().UintVar(&filter.TeamID, "team", 0, "filter by team ID")
	return cmd
}

func runBookingList(cmd *cobra.Command, configPath, typeRef string, filter store.BookingFilter) error {
	_, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	keys := map[uint]string{}
	types, err := repo.ListInspectionTypes(ctx, store.OrderBySortOrder)
	if err != nil {
		return err
	}
	for _, t := range types {
		keys[t.ID] = t.Key
	}
	if typeRef != "" {
		it, err := resolveType(ctx, repo, typeRef)
		if err != nil {
			return err
		}
		filter.InspectionTypeID = it.ID
	}

	bookings, err := repo.ListBookings(ctx, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bookings) == 0 {
		fmt.Fprintln(out, "No bookings found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEAM\tTYPE\tDATE\tSTART\tEND\tLANE\tSTATUS\tRESCRUT")
	for _, b := range bookings {
		rescrut := "-"
		if b.IsRescrutineering {
			rescrut = "yes"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.TeamID, keys[b.InspectionTypeID], b.Date, b.StartTime, b.EndTime, b.ResourceIndex, b.Status, rescrut)
	}
	return w.Flush()
}

func newBookingStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <booking-id> <status>",
		Short: "Move a booking to a new status",
		Long:  "Valid transitions: upcoming -> ongoing|cancelled, ongoing -> passed|failed|cancelled.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runBookingStatus(cmd, configPath, id, args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	return cmd
}

func runBookingStatus(cmd *cobra.Command, configPath string, id uint, status string) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := newBookingService(cfg, repo).UpdateStatus(cmd.Context(), id, status); err != nil {
		return explain(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Booking %d is now %s\n", id, status)
	return nil
}

func newBookingReopenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reopen <booking-id>",
		Short: "Reopen a passed inspection",
		Long: `Records that a passed inspection must be repeated. The passed booking is kept;
a new failed rescrutineering booking with the same slot is created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runBookingReopen(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Scrutineer config file")
	return cmd
}

func runBookingReopen(cmd *cobra.Command, configPath string, id uint) error {
	cfg, repo, err := repoFromConfig(configPath)
	if err != nil {
		return err
	}
	b, err := newBookingService(cfg, repo).Reopen(cmd.Context(), id)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reopened booking %d as failed rescrutineering booking %d\n", id, b.ID)
	return nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

// explain adds an operator hint to errors that call for picking another slot.
func explain(err error) error {
	switch {
	case errors.Is(err, booking.ErrSlotExhausted), errors.Is(err, booking.ErrSlotRestricted):
		return fmt.Errorf("%w (run `scrut slots` for free slots)", err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w (slot contended, list slots again and retry)", err)
	}
	return err
}
