package commands

import (
	"os"
	"sort"

	"solarweb-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(equipmentCmd)
}

var equipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Lists the site's logical layout (inverters, strings, modules).",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := createClient(cmd.Context(), cfg)

		equipment, err := client.Equipment(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch equipment", err)
		}

		ids := make([]int64, 0, len(equipment))
		for id := range equipment {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Kind", "Serial", "Name", "Parent"})

		for _, id := range ids {
			equip := equipment[id]
			t.AppendRow(table.Row{
				equip.Id,
				equip.Kind().String(),
				equip.SerialNumber,
				equip.DisplayName,
				equip.ParentId,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
