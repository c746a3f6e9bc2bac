package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/actorkit/pkg/billing"
)

func remindersCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect persisted reminders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every persisted reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Stop(cmd.Context())

			reminders, err := e.Scheduler().List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACTOR TYPE\tACTOR ID\tNAME\tDUE\tPERIOD\tATTEMPTS")
			for _, r := range reminders {
				period := "-"
				if r.Periodic() {
					period = r.Period.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					r.ActorType, r.ActorID, r.Name, r.DueTime.Format(time.RFC3339), period, r.Attempts)
			}
			return w.Flush()
		},
	})
	return cmd
}

func collectionCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Inspect and repair entity collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "list KIND",
		Short:     "Print every entity of KIND as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: billing.Kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Stop(cmd.Context())

			entities, err := e.Services().List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entities)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "repair KIND",
		Short:     "Drop index members of KIND whose record no longer exists",
		Args:      cobra.ExactArgs(1),
		ValidArgs: billing.Kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Stop(cmd.Context())

			removed, err := e.Services().Repair(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale members from %s\n", removed, args[0])
			return nil
		},
	})
	return cmd
}

func catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with billing catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [FILE]",
		Short: "Validate a catalog file, or the embedded catalog without FILE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cat *billing.Catalog
				err error
			)
			if len(args) == 1 {
				cat, err = billing.LoadCatalogFile(args[0])
			} else {
				cat, err = billing.DefaultCatalog()
			}
			if err != nil {
				return err
			}
			if len(cat.Plans) == 0 {
				return errors.New("catalog has no plans")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d kinds, %d plans, %d add-ons\n",
				len(cat.Kinds), len(cat.Plans), len(cat.AddOns))
			return nil
		},
	})
	return cmd
}
