package analysis

import "strings"

const extractPrompt = `Extract all user comments from this screenshot.
Return a JSON object of the form {"comments": ["...", "..."]} and nothing else.
Rules:
1. Include only the actual comment text.
2. Skip usernames, timestamps, reaction counts and other UI elements.
3. Preserve the original language and wording exactly. Do not translate or correct.
4. Skip empty comments.`

const classifySystemInstruction = `You are an expert in customer sentiment analysis.
Classify each comment in a NUANCED and OBJECTIVE way.

DEFINITIONS:
1. POSITIVE:
   - Satisfaction, compliments, thanks.
   - "This is great", "Thank you", "Bravo".
   - Overall positive feedback even with a minor reservation.

2. NEGATIVE:
   - Technical problems, bugs, slowness.
   - Dissatisfaction, disappointment, anger.
   - Clear irony or sarcasm.
   - Mixed feedback where the negative clearly outweighs the positive.

3. NEUTRAL:
   - Questions.
   - Facts or observations without a value judgement.
   - Ambiguous comments.

Golden rule: when a comment is mixed, ask whether the author is overall satisfied (positive) or dissatisfied (negative).
Always answer in JSON.`

const classifyPromptTemplate = `Analyze the following customer comment.

REFERENCE EXAMPLES:
- "Super appli, j'adore !" -> POSITIVE
- "L'interface est belle mais ça rame trop, c'est chiant." -> NEGATIVE
- "Really disappointed by the latest update." -> NEGATIVE
- "Great app, just missing a dark mode." -> POSITIVE
- "Comment on change la langue ?" -> NEUTRAL
- "Responsive customer service, thanks." -> POSITIVE

COMMENT TO ANALYZE:
"""{{COMMENT}}"""

1. Write a short "reasoning" sentence.
2. Deduce the sentiment from it (positive, negative, neutral).
3. Identify the topic and the theme.
4. Give your confidence between 0 and 1.

Return the result as JSON.`

func buildClassifyPrompt(comment string) string {
	return strings.Replace(classifyPromptTemplate, "{{COMMENT}}", comment, 1)
}
