package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/warp/deploy-engine/factory"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// =============================================================================
// OFFLINE COMMANDS - Evaluate a roster file without a store
// =============================================================================

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard for a roster file",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, today, horizon, err := loadRosterFlags(cmd)
			if err != nil {
				return err
			}
			d := workforce.BuildDashboard(snap, workforce.DefaultVocabulary, today, horizon)
			printDashboard(cmd.OutOrStdout(), d)
			return nil
		},
	}
	addRosterFlags(cmd)
	return cmd
}

func checkComplianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-compliance",
		Short: "Print one operative's certificate compliance",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, today, horizon, err := loadRosterFlags(cmd)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("operative")
			op, ok := snap.Operative(workforce.OperativeID(id))
			if !ok {
				return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", id)
			}

			// Same evaluation as the assignment check: the merged
			// site list, matched by name without a type filter.
			required := workforce.DefaultVocabulary.General
			if siteID, _ := cmd.Flags().GetString("site"); siteID != "" {
				site, ok := snap.Site(workforce.SiteID(siteID))
				if !ok {
					return generic.NewNotFound(generic.ErrSiteNotFound, "site", siteID)
				}
				required = workforce.RequiredTypesFor(site, workforce.DefaultVocabulary)
			}

			res := workforce.EvaluateCompliance(op, required, workforce.ComplianceOptions{
				HorizonDays: horizon,
				Reference:   today,
			})
			printCompliance(cmd.OutOrStdout(), op, res)
			return nil
		},
	}
	addRosterFlags(cmd)
	cmd.Flags().String("operative", "", "Operative ID (required)")
	cmd.Flags().String("site", "", "Evaluate against this site's certificate set")
	_ = cmd.MarkFlagRequired("operative")
	return cmd
}

func addRosterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("roster", "r", "", "Roster file (.json, .yaml or .yml)")
	cmd.Flags().String("today", "", "Reference date YYYY-MM-DD (default: today)")
	cmd.Flags().Int("horizon", workforce.DefaultHorizonDays, "Compliance look-ahead in days")
	_ = cmd.MarkFlagRequired("roster")
}

func loadRosterFlags(cmd *cobra.Command) (workforce.Snapshot, generic.TimePoint, int, error) {
	path, _ := cmd.Flags().GetString("roster")
	snap, report, err := factory.LoadRosterFile(path)
	if err != nil {
		return workforce.Snapshot{}, generic.TimePoint{}, 0, err
	}
	for _, f := range report.Invalid {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("warning: %s", f.String()))
	}

	today := generic.Today()
	if raw, _ := cmd.Flags().GetString("today"); raw != "" {
		tp, ok := generic.ParseDate(raw)
		if !ok {
			return workforce.Snapshot{}, generic.TimePoint{}, 0, &generic.InvalidDateError{Field: "today", Value: raw}
		}
		today = tp
	}
	horizon, _ := cmd.Flags().GetInt("horizon")
	return snap, today, horizon, nil
}

// =============================================================================
// PRINTING
// =============================================================================

func printDashboard(w io.Writer, d workforce.Dashboard) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Dashboard as of %s (week %s to %s)\n", d.AsOf, d.Week.Start, d.Week.End)
	fmt.Fprintf(w, "  Deployed now:   %d\n", len(d.DeployedNow))
	fmt.Fprintf(w, "  Active sites:   %d\n", len(d.ActiveSites))
	notFilled := fmt.Sprint(d.NotFulfilledCount)
	if d.NotFulfilledCount > 0 {
		notFilled = color.RedString(notFilled)
	}
	fmt.Fprintf(w, "  Not fulfilled:  %s\n", notFilled)
	fmt.Fprintf(w, "  Weekly profit:  %s\n\n", d.WeeklyProfit.StringFixed(2))

	bold.Fprintln(w, "Sites")
	for _, f := range d.Sites {
		limit := "uncapped"
		if f.Site.Capacity.IsCapped() {
			limit = fmt.Sprint(f.Site.Capacity.Max())
		}
		fmt.Fprintf(w, "  %-20s %s  %d/%s  deployed %d, assigned %d, offsite %d\n",
			f.Site.ID, fillColor(f.Fill), f.HeadCount, limit, f.Deployed, f.AssignedNot, f.Offsite)
	}

	if len(d.NeedsAttention) == 0 {
		return
	}
	fmt.Fprintln(w)
	bold.Fprintln(w, "Needs attention")
	for _, oc := range d.NeedsAttention {
		fmt.Fprintf(w, "  %-24s %s %s\n", oc.Operative.DisplayName(), overallColor(oc.Result.Overall), findings(oc.Result))
	}
}

func printCompliance(w io.Writer, op workforce.Operative, res workforce.ComplianceResult) {
	color.New(color.Bold).Fprintf(w, "%s (%s)\n", op.DisplayName(), op.ID)
	fmt.Fprintf(w, "  Overall:  %s\n", overallColor(res.Overall))
	for _, name := range res.Missing {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("missing "), name)
	}
	for _, e := range res.Expiring {
		if e.IsExpired() {
			fmt.Fprintf(w, "  %s %s\n", color.RedString("expired "), e)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("expiring"), e)
	}
	for _, name := range res.Undated {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("undated "), name)
	}
}

func findings(res workforce.ComplianceResult) string {
	var parts []string
	if n := len(res.Missing); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing", n))
	}
	if n := len(res.Expiring); n > 0 {
		parts = append(parts, fmt.Sprintf("%d expiring", n))
	}
	if n := len(res.Undated); n > 0 {
		parts = append(parts, fmt.Sprintf("%d undated", n))
	}
	return strings.Join(parts, ", ")
}

func fillColor(f workforce.FillStatus) string {
	switch f {
	case workforce.FillFilled:
		return color.GreenString("%-10s", f)
	case workforce.FillNotFilled:
		return color.RedString("%-10s", f)
	}
	return color.YellowString("%-10s", f)
}

func overallColor(o workforce.OverallCompliance) string {
	switch o {
	case workforce.ComplianceCompliant:
		return color.GreenString(string(o))
	case workforce.ComplianceNoData:
		return color.HiBlackString(string(o))
	}
	return color.YellowString(string(o))
}
