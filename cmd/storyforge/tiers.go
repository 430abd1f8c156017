package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/storyforge/storyforge/internal/reporting"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

var (
	tiersPDFPath  string
	checkJSON     bool
	errValidation = errors.New("entitlement table failed validation")
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the tier capability table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := entitlements.DefaultResolver()
		if err := printTierTable(cmd.OutOrStdout(), resolver); err != nil {
			return err
		}
		if tiersPDFPath == "" {
			return nil
		}

		pdf, err := reporting.NewComparisonSheet(resolver).Generate(reporting.ComparisonOptions{GeneratedAt: time.Now()})
		if err != nil {
			return err
		}
		if err := os.WriteFile(tiersPDFPath, pdf, 0o644); err != nil {
			return fmt.Errorf("write comparison sheet: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nComparison sheet written to %s\n", tiersPDFPath)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check TIER CAPABILITY [COUNT]",
	Short: "Show the gate decision for a tier, capability and optional usage count",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := entitlements.ParseTier(args[0])
		if err != nil {
			return err
		}
		capability, err := entitlements.ParseCapability(args[1])
		if err != nil {
			return err
		}

		gate := entitlements.NewGate(nil)
		var decision entitlements.Decision
		if len(args) == 3 {
			count, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || count < 0 {
				return fmt.Errorf("count must be a non-negative integer, got %q", args[2])
			}
			decision = gate.CheckUsage(tier, capability, count)
		} else {
			decision = gate.Check(tier, capability)
		}

		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		}
		printDecision(out, decision)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the tier table for gaps and tier ordering problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateTable(cmd.OutOrStdout(), entitlements.DefaultTable())
	},
}

func init() {
	tiersCmd.Flags().StringVar(&tiersPDFPath, "pdf", "", "also write the comparison sheet PDF to this file")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the decision as JSON")
}

func printTierTable(out io.Writer, resolver *entitlements.Resolver) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "CAPABILITY\tKIND")
	for _, tier := range entitlements.Tiers() {
		fmt.Fprintf(tw, "\t%s", entitlements.TierDisplayName(tier))
	}
	fmt.Fprintln(tw)

	for _, capability := range entitlements.Capabilities() {
		fmt.Fprintf(tw, "%s\t%s", capability, entitlements.KindOf(capability))
		for _, tier := range entitlements.Tiers() {
			fmt.Fprintf(tw, "\t%s", resolver.ValueFor(tier, capability))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func printDecision(out io.Writer, d entitlements.Decision) {
	status := "ALLOWED"
	if !d.Allowed() {
		status = "BLOCKED"
	}
	fmt.Fprintf(out, "%s: %s on %s (%s)\n", status, d.Capability, entitlements.TierDisplayName(d.Tier), d.Outcome())
	if d.Limit != nil && d.Current != nil {
		limit := strconv.FormatInt(*d.Limit, 10)
		if *d.Limit == entitlements.Unlimited {
			limit = "unlimited"
		}
		fmt.Fprintf(out, "usage: %d of %s (state %s)\n", *d.Current, limit, d.State)
	}
	if d.Message != "" {
		fmt.Fprintln(out, d.Message)
	}
	if d.UpgradeURL != "" {
		fmt.Fprintln(out, d.UpgradeURL)
	}
}

// validateTable fails on gaps in the table. Tier ordering problems are only
// reported.
func validateTable(out io.Writer, table *entitlements.Table) error {
	var missing int
	for _, tier := range entitlements.Tiers() {
		for _, capability := range entitlements.Capabilities() {
			value, ok := table.Lookup(tier, capability)
			switch {
			case !ok:
				missing++
				fmt.Fprintf(out, "ERROR: %s has no value for %s\n", tier, capability)
			case value.Kind() != entitlements.KindOf(capability):
				missing++
				fmt.Fprintf(out, "ERROR: %s/%s is a %s, want %s\n", tier, capability, value.Kind(), entitlements.KindOf(capability))
			}
		}
	}

	violations := table.MonotonicityViolations()
	for _, v := range violations {
		fmt.Fprintf(out, "WARN: %s\n", v)
	}

	if missing > 0 {
		return fmt.Errorf("%w: %d problem(s)", errValidation, missing)
	}
	fmt.Fprintf(out, "OK: %d tiers x %d capabilities, %d ordering warning(s)\n",
		len(entitlements.Tiers()), len(entitlements.Capabilities()), len(violations))
	return nil
}
