package translator

import (
	"fmt"
	"strings"
)

// UnitSeparator delimits translation units inside one chat completion.
// The model is instructed to preserve it so the response can be split
// back positionally.
const UnitSeparator = "\n---UNIT_SEPARATOR---\n"

func buildSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a professional translator specializing in paginated documents.
Your task is to translate text extracted from a PDF from %s to %s.

CRITICAL RULES:
1. Translate the text content from %s to %s accurately.
2. Preserve any mathematical formulas, symbols, or special characters exactly as they are.
3. Do not add any explanations or notes - output only the translated text.
4. IMPORTANT: The input may contain multiple text units separated by "%s".
5. You MUST preserve these separators in your output exactly as they appear.
6. Each unit is translated independently but the separators must remain intact.
7. Do not merge units or remove separators.`,
		sourceLang, targetLang, sourceLang, targetLang, UnitSeparator)
}

func buildUserPrompt(texts []string) string {
	return strings.Join(texts, UnitSeparator)
}

// splitTranslatedText splits the model output back into expectedCount
// parts. A short response is padded with empty parts; a long one has its
// tail merged into the last slot, covering the case where the separator
// text itself appears in a translation.
func splitTranslatedText(translated string, expectedCount int) []string {
	parts := strings.Split(translated, UnitSeparator)

	if len(parts) == expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	if len(parts) < expectedCount {
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		for len(parts) < expectedCount {
			parts = append(parts, "")
		}
		return parts
	}

	result := make([]string, expectedCount)
	for i := 0; i < expectedCount-1; i++ {
		result[i] = strings.TrimSpace(parts[i])
	}
	result[expectedCount-1] = strings.TrimSpace(strings.Join(parts[expectedCount-1:], UnitSeparator))
	return result
}
