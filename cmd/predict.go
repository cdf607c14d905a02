package cmd

import (
	"fmt"

	"accidentlab/monitoring"
	"accidentlab/predictor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	predictYear  int
	predictMonth string
	predictState string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the monthly accident count for a state with the saved model",
	Long: `Predict uses the tuned model written by train. Unset flags take the form
defaults: the latest observed year, January and the first state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPredictor(cfg)
		if err != nil {
			return err
		}
		form := predictor.NewForm(p)
		q := form.Query()
		if cmd.Flags().Changed("year") {
			q.Year = predictYear
		}
		if cmd.Flags().Changed("month") {
			if q.Month, err = parseMonth(predictMonth); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("state") {
			q.State = predictState
		}

		result, err := p.Predict(q)
		monitoring.DefaultRegistry().RecordPrediction(err)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)

		if store, err := openStore(cfg); err == nil {
			defer store.Close()
			if err := store.SavePrediction(cmd.Context(), result.State, result.Year, result.Month, result.Count); err != nil {
				logger.Warn("failed to record prediction", zap.Error(err))
			}
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().IntVar(&predictYear, "year", 0, "year within the training range")
	predictCmd.Flags().StringVar(&predictMonth, "month", "1", "month number (1-12) or name")
	predictCmd.Flags().StringVar(&predictState, "state", "", "state or union territory as spelled in the data")
	rootCmd.AddCommand(predictCmd)
}
