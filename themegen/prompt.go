package themegen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildPrompt assembles the designer prompt: the user request, any
// referenced theme documents, strict modification rules when references
// exist, and the exact output schema.
func buildPrompt(userPrompt string, refs map[string]ReferenceTheme) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert UI/UX theme designer. Generate a complete theme based on this request: %q\n\nREFERENCED THEMES:", userPrompt)

	if len(refs) > 0 {
		for mention, ref := range refs {
			vars, _ := json.MarshalIndent(ref.CSSVars, "", "  ")
			fmt.Fprintf(&b, "\n\n@%s theme %q:\n%s\n", mention, ref.DisplayName, vars)
		}
		b.WriteString(modificationRules)
	} else {
		b.WriteString(" None provided - create an entirely new theme from scratch.\n")
	}

	b.WriteString(outputRequirements)
	return b.String()
}

const modificationRules = `

CRITICAL MODIFICATION RULES - FOLLOW EXACTLY:
1. START by copying EVERY SINGLE CSS variable from the referenced theme above EXACTLY as-is
2. DO NOT change ANY colors, fonts, spacing, or other values UNLESS specifically mentioned in the user prompt
3. If user says "change only the font" - ONLY modify font-sans, font-serif, font-mono. Keep ALL colors identical
4. If user says "make more vibrant" - ONLY adjust color saturation. Keep ALL fonts, spacing, radius identical
5. If user says "change nothing but X" - ONLY modify X. Everything else MUST remain identical

VIOLATION OF THESE RULES WILL RESULT IN REJECTION.

PRESERVATION REQUIREMENT:
- Copy the exact oklch() values from the referenced theme
- Copy the exact font names from the referenced theme
- Copy the exact radius value from the referenced theme
- Copy ALL other properties unchanged
- Apply ONLY the specific modification requested

MODIFICATION EXAMPLES:
- "change only font" = keep all colors, radius, spacing identical, only change font-sans/serif/mono
- "make darker" = keep all fonts, radius, spacing identical, only reduce lightness in oklch values
- "more vibrant" = keep all fonts, radius, spacing identical, only increase chroma in oklch values
`

const outputRequirements = `

CRITICAL REQUIREMENTS:
1. Use ONLY oklch() color format for all colors (e.g., "oklch(0.7686 0.1647 70.0804)")
2. Ensure proper contrast ratios for accessibility
3. Include both light and dark mode variants
4. Choose fonts that match the theme mood
5. Generate a unique theme name (lowercase, hyphens only)

THEME STRUCTURE:
When modifying a referenced theme, you MUST start with its exact structure and values.
Return a JSON object with this EXACT structure:

{
  "name": "unique-theme-name",
  "display_name": "Theme Display Name",
  "description": "Brief description of the theme's style and mood",
  "css_vars": {
    "theme": {
      "font-sans": "Font Name, sans-serif",
      "font-mono": "Mono Font, monospace",
      "font-serif": "Serif Font, serif",
      "font-size": "16px",
      "radius": "Rem value"
    },
    "light": {
      "background": "oklch(...)",
      "foreground": "oklch(...)",
      "card": "oklch(...)",
      "card-foreground": "oklch(...)",
      "popover": "oklch(...)",
      "popover-foreground": "oklch(...)",
      "primary": "oklch(...)",
      "primary-foreground": "oklch(...)",
      "secondary": "oklch(...)",
      "secondary-foreground": "oklch(...)",
      "muted": "oklch(...)",
      "muted-foreground": "oklch(...)",
      "accent": "oklch(...)",
      "accent-foreground": "oklch(...)",
      "destructive": "oklch(...)",
      "destructive-foreground": "oklch(...)",
      "border": "oklch(...)",
      "input": "oklch(...)",
      "ring": "oklch(...)",
      "radius": "Rem value",
      "sidebar": "oklch(...)",
      "sidebar-foreground": "oklch(...)",
      "sidebar-primary": "oklch(...)",
      "sidebar-primary-foreground": "oklch(...)",
      "sidebar-accent": "oklch(...)",
      "sidebar-accent-foreground": "oklch(...)",
      "sidebar-border": "oklch(...)",
      "sidebar-ring": "oklch(...)"
    },
    "dark": {
      "background": "oklch(...)",
      "foreground": "oklch(...)",
      "card": "oklch(...)",
      "card-foreground": "oklch(...)",
      "popover": "oklch(...)",
      "popover-foreground": "oklch(...)",
      "primary": "oklch(...)",
      "primary-foreground": "oklch(...)",
      "secondary": "oklch(...)",
      "secondary-foreground": "oklch(...)",
      "muted": "oklch(...)",
      "muted-foreground": "oklch(...)",
      "accent": "oklch(...)",
      "accent-foreground": "oklch(...)",
      "destructive": "oklch(...)",
      "destructive-foreground": "oklch(...)",
      "border": "oklch(...)",
      "input": "oklch(...)",
      "ring": "oklch(...)",
      "radius": "Rem value",
      "sidebar": "oklch(...)",
      "sidebar-foreground": "oklch(...)",
      "sidebar-primary": "oklch(...)",
      "sidebar-primary-foreground": "oklch(...)",
      "sidebar-accent": "oklch(...)",
      "sidebar-accent-foreground": "oklch(...)",
      "sidebar-border": "oklch(...)",
      "sidebar-ring": "oklch(...)"
    }
  }
}
`
