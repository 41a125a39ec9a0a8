package commands

import (
	"fmt"
	"os"
	"sort"
	"time"

	"solarweb-backend/lib/scrapers/solaredge"
	"solarweb-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var energyUnit *string

func init() {
	energyUnit = energyCmd.Flags().String("unit", "week", "How far back to fetch: day or week.")
	rootCmd.AddCommand(energyCmd)
}

func parseTimeUnit(s string) (solaredge.TimeUnit, error) {
	switch s {
	case "day":
		return solaredge.TimeUnitDay, nil
	case "week":
		return solaredge.TimeUnitWeek, nil
	}
	return 0, fmt.Errorf("unknown time unit %q, expected day or week", s)
}

var energyCmd = &cobra.Command{
	Use:   "energy [--unit day|week]",
	Short: "Fetches per-equipment production in 15 minute windows.",
	Run: func(cmd *cobra.Command, args []string) {
		unit, err := parseTimeUnit(*energyUnit)
		if err != nil {
			serviceutil.Fatal("invalid flag", err)
		}

		cfg := loadConfig()
		client := createClient(cmd.Context(), cfg)

		equipment, err := client.Equipment(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch equipment", err)
		}
		spans, err := client.EnergySpans(cmd.Context(), unit)
		if err != nil {
			serviceutil.Fatal("failed to fetch energy data", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Start", "Equipment", "Wh"})

		for _, span := range spans {
			ids := make([]int64, 0, len(span.Values))
			for id := range span.Values {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			for _, id := range ids {
				name := equipment[id].DisplayName
				if name == "" {
					name = fmt.Sprintf("%d", id)
				}
				t.AppendRow(table.Row{
					span.StartTime.Format(time.DateTime),
					name,
					fmt.Sprintf("%.2f", span.Values[id]),
				})
			}
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
