package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
)

var askTemperature float32

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a medical question grounded in the indexed corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runAsk(ctx, a, joinArgs(args))
		})
	},
}

func init() {
	askCmd.Flags().Float32Var(&askTemperature, "temperature", 0.1, "generation temperature")
	askCmd.Flags().StringVar(&patientAge, "age", "", "patient age")
	askCmd.Flags().StringVar(&patientGender, "gender", "", "patient gender")
	askCmd.Flags().StringSliceVar(&patientSymptoms, "symptom", nil, "patient symptom (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, a *app.App, question string) error {
	patient, err := buildPatient()
	if err != nil {
		return err
	}

	answer, err := a.RAG.Answer(ctx, question, patient, askTemperature)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)

	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range answer.Sources {
			fmt.Printf("  [%.3f] %s (%s)\n", src.Relevance, src.Title, src.Type)
		}
	}
	fmt.Printf("\nTokens used: %d\n", answer.TokensUsed)
	return nil
}
