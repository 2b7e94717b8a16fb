package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caduceus-ai/caduceus/internal/app"
)

var (
	reasonTemperature float32
	reasonContext     string
)

var reasonCmd = &cobra.Command{
	Use:   "reason",
	Short: "Generate a structured differential diagnosis for a patient",
	Long: `Reason produces a ranked differential diagnosis, an urgency
assessment, recommended diagnostics, therapy options, and warning signs
from the given patient information, together with a confidence estimate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runReason)
	},
}

func init() {
	reasonCmd.Flags().Float32Var(&reasonTemperature, "temperature", 0.1, "generation temperature")
	reasonCmd.Flags().StringVar(&reasonContext, "context", "", "additional free-text medical context")
	reasonCmd.Flags().StringVar(&patientAge, "age", "", "patient age")
	reasonCmd.Flags().StringVar(&patientGender, "gender", "", "patient gender")
	reasonCmd.Flags().StringSliceVar(&patientSymptoms, "symptom", nil, "patient symptom (repeatable)")
	reasonCmd.Flags().StringSliceVar(&patientHistory, "history", nil, "pre-existing condition (repeatable)")
	reasonCmd.Flags().StringSliceVar(&patientMedications, "medication", nil, "current medication (repeatable)")
	reasonCmd.Flags().StringSliceVar(&patientVitals, "vital", nil, "vital sign as name=value (repeatable)")
	rootCmd.AddCommand(reasonCmd)
}

func runReason(ctx context.Context, a *app.App) error {
	patient, err := buildPatient()
	if err != nil {
		return err
	}
	if patient == nil {
		return fmt.Errorf("no patient information given; set at least one of --age, --gender, --symptom, --history, --medication, --vital")
	}

	assessment, err := a.RAG.Reason(ctx, *patient, reasonContext, reasonTemperature)
	if err != nil {
		return err
	}

	fmt.Println(assessment.Text)
	fmt.Printf("\nConfidence: %.2f\n", assessment.Confidence)
	fmt.Printf("Tokens used: %d\n", assessment.TokensUsed)
	return nil
}
