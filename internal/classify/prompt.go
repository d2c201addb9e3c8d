package classify

// SystemPrompt constrains the reply format.
const SystemPrompt = "Reply with JSON only. No prose, no code fences, no extra tokens."

const userPromptHead = `You are a sentiment classifier looking for ANY partisan 
or accusatory statements on US government websites or ANY potential violations of the
Hatch Act, such as saying that a political party is responsible for
shutting down the government.

If the text is accusatory or a potential Hatch Act violation, label it partisan. Otherwise label it neutral.
Score: partisan=1, neutral=0.

Return strict JSON ONLY with keys:
  label ∈ ["partisan","neutral"], score ∈ [0,1], rationale (short).

Text:
`

// UserPrompt embeds text in the classification instructions.
func UserPrompt(text string) string {
	return userPromptHead + text + "\nJSON:"
}
