package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog used for chunk budgets and cost estimates",
	Example: `  insightloom models show
  insightloom models show --json
  insightloom --config team.yaml models show   # includes catalog_file entries`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model catalog and the chunk budget each model would get",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		cat := ai.Catalog()
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if modelsJSON {
			b, err := utils.PrettyJSON(cat)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT\tIN $/1K\tOUT $/1K\tCHUNK BUDGET")
		for _, k := range keys {
			mi := cat[k]
			budget := ai.FitChunkBudget(k, c.ChunkTokenBudget, c.ChunkMaxTokens)
			marker := ""
			if k == c.Model {
				marker = " *"
			}
			fmt.Fprintf(tw, "%s%s\t%d\t%.5f\t%.5f\t%d\n", k, marker, mi.ContextTokens, mi.InputPerK, mi.OutputPerK, budget)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsShowCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
}
