package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You are an expert on Indian health-insurance policies and IRDAI norms.
Extract the policy information and every coverage feature you can find from the policy text.
Respond with JSON only, exactly this shape:
{
  "policyInfo": {"name": "", "insurer": "", "sumInsured": "", "policyType": ""},
  "features": [
    {"id": "", "name": "", "value": "", "quote": "", "reference": ""}
  ]
}
Rules:
- "id" is a lowercase snake_case feature key, e.g. "ped_waiting_period", "room_rent", "co_pay", "restore_benefit", "ncb", "pre_post_hospitalization", "maternity", "daycare", "ambulance", "initial_waiting_period", "specific_disease_waiting".
- "value" is the concrete term as stated, e.g. "36 months", "10%", "1% of SI per day".
- "quote" is the exact supporting sentence copied verbatim from the policy text.
- "reference" is the clause or section number when visible, else "".
- Include features even when the policy is silent; use value "not mentioned" with an empty quote.
- Do not invent numbers. Do not add commentary.`

const classifySystemPrompt = `You are an expert on Indian health-insurance policies.
For each feature below, judge how favorable its terms are for the policyholder.
Respond with JSON only, exactly this shape:
{"classifications": [{"id": "", "category": "", "explanation": ""}]}
"category" must be one of GREAT, GOOD, RED_FLAG, UNCLEAR.
Use UNCLEAR when the value is missing, ambiguous, or "not mentioned".
Keep each explanation to one sentence a layperson can follow.`

const fixJSONSystemPrompt = `The previous response was not valid JSON. Return the same content as strictly valid JSON matching the requested shape. Output JSON only, no prose, no code fences.`

// BuildAnalyzeMessages builds the chat messages for a per-chunk extraction call.
func BuildAnalyzeMessages(input AnalyzeInput) []Message {
	user := input.PolicyText
	if input.ChunkCount > 1 {
		user = fmt.Sprintf("This is part %d of %d of the policy document.\n\n%s",
			input.ChunkIndex+1, input.ChunkCount, input.PolicyText)
	}
	return []Message{
		{Role: RoleSystem, Content: extractionSystemPrompt},
		{Role: RoleUser, Content: user},
	}
}

// BuildClassifyMessages builds the chat messages for the fallback classification call.
func BuildClassifyMessages(input ClassifyInput) []Message {
	payload, err := json.Marshal(map[string]any{"features": input.Features})
	if err != nil {
		payload = []byte(`{"features":[]}`)
	}
	return []Message{
		{Role: RoleSystem, Content: classifySystemPrompt},
		{Role: RoleUser, Content: string(payload)},
	}
}

// BuildFixJSONMessages builds the repair pass for malformed model output.
func BuildFixJSONMessages(raw string) []Message {
	return []Message{
		{Role: RoleSystem, Content: fixJSONSystemPrompt},
		{Role: RoleUser, Content: strings.TrimSpace(raw)},
	}
}

// Message is a provider-neutral chat message.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)
