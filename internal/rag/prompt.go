package rag

import (
	"sort"
	"strings"
)

// PatientContext carries the structured patient attributes embedded into
// prompts. Every field is optional; absent values render as "none given".
type PatientContext struct {
	Age         string
	Gender      string
	Symptoms    []string
	History     []string
	Medications []string
	Vitals      map[string]string
}

// noneGiven is the fixed rendering for absent patient attributes.
const noneGiven = "none given"

// ReasoningPrompt composes the structured differential-diagnosis prompt.
// It is a pure function of its inputs: identical arguments always produce
// identical text. Generation is expected to stop at the closing
// </ASSESSMENT> delimiter.
func ReasoningPrompt(patient PatientContext, additionalContext string) string {
	var b strings.Builder

	b.WriteString(`<SYSTEM>
You are CADUCEUS, a specialized medical AI assistant for physicians.
Your task is to produce a structured differential diagnosis and give recommendations for action.
Stay factually accurate and evidence based.
Pay particular attention to warning signs and potentially life-threatening conditions.
</SYSTEM>

<PATIENT_INFORMATION>
`)
	b.WriteString("Age: " + orNone(patient.Age) + "\n")
	b.WriteString("Gender: " + orNone(patient.Gender) + "\n\n")
	b.WriteString("Symptoms:\n" + joinOrNone(patient.Symptoms) + "\n\n")
	b.WriteString("Medical history:\n" + joinOrNone(patient.History) + "\n\n")
	b.WriteString("Current medications:\n" + joinOrNone(patient.Medications) + "\n\n")
	b.WriteString("Vital signs:\n" + vitalsOrNone(patient.Vitals) + "\n")
	b.WriteString("</PATIENT_INFORMATION>\n")

	if additionalContext != "" {
		b.WriteString("<ADDITIONAL_CONTEXT>\n" + additionalContext + "\n</ADDITIONAL_CONTEXT>")
	}

	b.WriteString(`
<TASK>
1. Provide a ranked list of possible differential diagnoses.
2. Assess the urgency of the presentation.
3. Recommend further diagnostic measures.
4. Suggest therapeutic options where relevant.
5. Name important warning signs to watch for.
</TASK>

<ASSESSMENT>
`)

	return b.String()
}

// GroundingPrompt composes the retrieval-grounded answering prompt. The
// retrieved context is passed pre-assembled; patient may be nil when the
// query carries no patient information.
func GroundingPrompt(query, retrievedContext string, patient *PatientContext) string {
	var b strings.Builder

	b.WriteString(`<SYSTEM>
You are CADUCEUS, a specialized medical AI assistant for physicians.
Use the following information to give a precise, evidence-based answer.
If the information is insufficient, say so honestly and state what further information would be helpful.
Answer in a professional, factual style suited to medical personnel.
</SYSTEM>

<QUERY>
`)
	b.WriteString(query)
	b.WriteString("\n</QUERY>\n")

	if patient != nil {
		b.WriteString("\n<PATIENT_CONTEXT>\n")
		b.WriteString("Age: " + orNone(patient.Age) + "\n")
		b.WriteString("Gender: " + orNone(patient.Gender) + "\n")
		b.WriteString("Symptoms: " + joinOrNone(patient.Symptoms) + "\n")
		b.WriteString("</PATIENT_CONTEXT>\n")
	}

	b.WriteString("\n<RETRIEVED_CONTEXT>\n")
	b.WriteString(retrievedContext)
	b.WriteString(`</RETRIEVED_CONTEXT>

<INSTRUCTIONS>
1. Consider all relevant information from the provided context.
2. Follow current medical guidelines and standards.
3. Give clear, structured answers with differential diagnoses where appropriate.
4. Be precise about dosages, therapy recommendations, and diagnostic criteria.
5. Flag uncertainty explicitly when the evidence is not conclusive.
</INSTRUCTIONS>

<ANSWER>
`)

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return noneGiven
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return noneGiven
	}
	return strings.Join(items, ", ")
}

// vitalsOrNone renders vitals in sorted key order so the prompt stays
// deterministic across map iteration orders.
func vitalsOrNone(vitals map[string]string) string {
	if len(vitals) == 0 {
		return noneGiven
	}
	keys := make([]string, 0, len(vitals))
	for k := range vitals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+": "+vitals[k])
	}
	return strings.Join(pairs, ", ")
}
