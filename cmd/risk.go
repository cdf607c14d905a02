package cmd

import (
	"fmt"

	"accidentlab/monitoring"
	"accidentlab/risk"

	"github.com/spf13/cobra"
)

var riskInput = risk.DefaultInput()

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Print the rule-based accident risk level for the given conditions",
	RunE: func(cmd *cobra.Command, args []string) error {
		scorer, err := loadScorer(cfg)
		if err != nil {
			return err
		}
		a, err := scorer.Score(riskInput)
		monitoring.DefaultRegistry().RecordRisk(a.Label, err)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), a)
		return nil
	},
}

func init() {
	d := risk.DefaultInput()
	riskCmd.Flags().IntVar(&riskInput.Time, "time", d.Time, "time of day: 0 Night, 1 Morning, 2 Afternoon, 3 Evening")
	riskCmd.Flags().IntVar(&riskInput.Weather, "weather", d.Weather, "weather: 0 Clear, 1 Rain, 2 Fog, 3 Snow")
	riskCmd.Flags().IntVar(&riskInput.Road, "road", d.Road, "road condition: 0 Dry, 1 Wet, 2 Icy")
	riskCmd.Flags().IntVar(&riskInput.Traffic, "traffic", d.Traffic, "traffic volume 0-500")
	rootCmd.AddCommand(riskCmd)
}
