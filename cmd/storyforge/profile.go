package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/storyforge/storyforge/internal/audit"
	"github.com/storyforge/storyforge/internal/profiles"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles and usage counters",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create EMAIL [TIER]",
	Short: "Create a profile (apprentice unless TIER is given)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier := entitlements.TierApprentice
		if len(args) == 2 {
			parsed, err := entitlements.ParseTier(args[1])
			if err != nil {
				return err
			}
			tier = parsed
		}

		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Create(cmd.Context(), args[0], tier)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Email, p.Tier)
		return nil
	},
}

var profileSetTierCmd = &cobra.Command{
	Use:   "set-tier ID TIER",
	Short: "Move a profile to another tier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := entitlements.ParseTier(args[1])
		if err != nil {
			return err
		}

		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		previous, err := store.SetTier(cliContext(cmd), args[0], tier)
		if err != nil {
			return err
		}
		if previous == tier {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already on %s\n", args[0], entitlements.TierDisplayName(tier))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now on %s (was %s)\n", args[0], entitlements.TierDisplayName(tier), entitlements.TierDisplayName(previous))
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a profile with its usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Email, p.Tier)
		}
		return nil
	},
}

var profileResetUsageCmd = &cobra.Command{
	Use:   "reset-usage ID [CAPABILITY]",
	Short: "Zero one usage counter, or all of them",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var capability entitlements.Capability
		if len(args) == 2 {
			parsed, err := entitlements.ParseCapability(args[1])
			if err != nil {
				return err
			}
			capability = parsed
		}

		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ResetUsage(cliContext(cmd), args[0], capability); err != nil {
			return err
		}

		usage, err := store.Usage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(usage))
		for k := range usage {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		fmt.Fprintf(cmd.OutOrStdout(), "usage reset for %s; %d counter(s) remain\n", args[0], len(keys))
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s=%d\n", k, usage[entitlements.Capability(k)])
		}
		return nil
	},
}

var historyLimit int

var profileHistoryCmd = &cobra.Command{
	Use:   "history ID",
	Short: "Show tier changes and usage resets, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfileStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		events, err := store.History(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "no plan changes recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tEVENT\tACTOR\tDETAILS")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Actor, e.Details)
		}
		return tw.Flush()
	},
}

func init() {
	profileHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of events to show")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileSetTierCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileResetUsageCmd)
	profileCmd.AddCommand(profileHistoryCmd)
}

// openProfileStore opens the profile database with plan history recording.
func openProfileStore() (*audit.RecordingStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := profiles.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	history, err := audit.OpenSQLite(cfg.AuditDatabasePath())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return audit.NewRecordingStore(store, history), nil
}

// cliContext tags plan changes made from the command line.
func cliContext(cmd *cobra.Command) context.Context {
	return audit.WithActor(cmd.Context(), "cli")
}
