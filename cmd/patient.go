package cmd

import (
	"fmt"
	"strings"

	"github.com/caduceus-ai/caduceus/internal/rag"
)

// Shared patient flags used by ask and reason.
var (
	patientAge         string
	patientGender      string
	patientSymptoms    []string
	patientHistory     []string
	patientMedications []string
	patientVitals      []string
)

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

// buildPatient assembles a PatientContext from the shared flags. Returns
// nil when no patient information was given at all.
func buildPatient() (*rag.PatientContext, error) {
	vitals, err := parseVitals(patientVitals)
	if err != nil {
		return nil, err
	}

	patient := &rag.PatientContext{
		Age:         patientAge,
		Gender:      patientGender,
		Symptoms:    patientSymptoms,
		History:     patientHistory,
		Medications: patientMedications,
		Vitals:      vitals,
	}

	if patient.Age == "" && patient.Gender == "" &&
		len(patient.Symptoms) == 0 && len(patient.History) == 0 &&
		len(patient.Medications) == 0 && len(patient.Vitals) == 0 {
		return nil, nil
	}
	return patient, nil
}

// parseVitals turns repeated key=value flags into a vitals map.
func parseVitals(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	vitals := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid vital %q, want name=value", pair)
		}
		vitals[key] = value
	}
	return vitals, nil
}
