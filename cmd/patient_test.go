package cmd

import (
	"testing"
)

func TestParseVitals(t *testing.T) {
	vitals, err := parseVitals([]string{"bp=150/95", "heart_rate=104"})
	if err != nil {
		t.Fatalf("parseVitals() error: %v", err)
	}
	if vitals["bp"] != "150/95" || vitals["heart_rate"] != "104" {
		t.Errorf("vitals = %v", vitals)
	}
}

func TestParseVitals_Empty(t *testing.T) {
	vitals, err := parseVitals(nil)
	if err != nil {
		t.Fatalf("parseVitals() error: %v", err)
	}
	if vitals != nil {
		t.Errorf("vitals = %v, want nil", vitals)
	}
}

func TestParseVitals_Invalid(t *testing.T) {
	for _, pair := range []string{"no-separator", "=missing-key"} {
		if _, err := parseVitals([]string{pair}); err == nil {
			t.Errorf("parseVitals(%q) returned nil error", pair)
		}
	}
}

func TestBuildPatient_NoFlagsIsNil(t *testing.T) {
	resetPatientFlags(t)

	patient, err := buildPatient()
	if err != nil {
		t.Fatalf("buildPatient() error: %v", err)
	}
	if patient != nil {
		t.Errorf("buildPatient() = %+v, want nil without patient flags", patient)
	}
}

func TestBuildPatient_CollectsFlags(t *testing.T) {
	resetPatientFlags(t)
	patientAge = "54"
	patientSymptoms = []string{"chest pain"}
	patientVitals = []string{"bp=150/95"}

	patient, err := buildPatient()
	if err != nil {
		t.Fatalf("buildPatient() error: %v", err)
	}
	if patient == nil {
		t.Fatal("buildPatient() = nil")
	}
	if patient.Age != "54" || len(patient.Symptoms) != 1 || patient.Vitals["bp"] != "150/95" {
		t.Errorf("patient = %+v", patient)
	}
}

func resetPatientFlags(t *testing.T) {
	t.Helper()
	patientAge = ""
	patientGender = ""
	patientSymptoms = nil
	patientHistory = nil
	patientMedications = nil
	patientVitals = nil
}
