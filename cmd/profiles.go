package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage stored resistor profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored resistor profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profiles, err := st.ListResistorProfiles(ctx)
		if err != nil {
			return eris.Wrap(err, "profiles list")
		}
		if len(profiles) == 0 {
			fmt.Fprintln(os.Stderr, "No profiles found.")
			return nil
		}
		formatProfilesList(os.Stdout, profiles)
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored resistor profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetResistorProfile(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "profiles show")
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(p)
	},
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store the resistor profiles of a YAML table or Parameters sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tables, err := profile.Load(args[0])
		if err != nil {
			return eris.Wrap(err, "profiles import")
		}
		if err := checkComplete(tables); err != nil {
			return eris.Wrap(err, "profiles import")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		names := tables.ResistorNames()
		for _, n := range names {
			p := tables.Resistors[n]
			if p.Source == "" {
				p.Source = args[0]
			}
			if err := st.UpsertResistorProfile(ctx, p); err != nil {
				return eris.Wrapf(err, "profiles import: %s", n)
			}
		}
		if n := len(tables.Instruments); n > 0 {
			zap.L().Info("instrument profiles are read from the table at analysis time, not stored",
				zap.Int("instruments", n))
		}

		fmt.Fprintf(os.Stdout, "Imported %d resistor profiles from %s\n", len(names), args[0])
		return nil
	},
}

// checkComplete rejects resistor profiles without every required
// parameter. Stored profiles are read back as complete.
func checkComplete(tables *profile.Tables) error {
	for _, n := range tables.ResistorNames() {
		if m := tables.Resistors[n].Missing(); len(m) > 0 {
			return eris.Errorf("%s has no %s", n, strings.Join(m, ", "))
		}
	}
	return nil
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesImportCmd)
	rootCmd.AddCommand(profilesCmd)
}

// formatProfilesList writes a tabular list of profiles to w.
func formatProfilesList(out io.Writer, profiles []model.ResistorProfile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tR0 LV (Ω)\tR0 HV (Ω)\tT SENSOR\tDATE\tSOURCE")
	_, _ = fmt.Fprintln(w, "----\t---------\t---------\t--------\t----\t------")

	for _, p := range profiles {
		date := ""
		if !p.Date.IsZero() {
			date = p.Date.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%s\t%s\t%s\n",
			p.Name, p.R0LV.Value, p.R0HV.Value, p.TSensor, date, p.Source)
	}
	_ = w.Flush()
}
