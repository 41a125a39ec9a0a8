package commands

import (
	"fmt"

	"solarweb-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Resolves a human-entered name to the closest matching equipment.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := createClient(cmd.Context(), cfg)

		equip, similarity, err := client.FindEquipment(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to find equipment", err)
		}

		fmt.Printf(
			"%d\t%s\t%s\t(similarity %.2f)\n",
			equip.Id, equip.Kind().String(), equip.DisplayName, similarity,
		)
	},
}
