package translator

// Prompts posted by the bot when a message cannot be translated yet.
const (
	// EnableTranslationMessage asks a channel to opt in.
	EnableTranslationMessage = "👋 Translation is not set up here yet. Use `/set-translation primary:ja target:en` to choose your languages, then `/translate-toggle` to enable translation in this channel."

	// SetTranslationMessage asks a user in a direct message to pick languages.
	SetTranslationMessage = "👋 Tell me which languages you use first: `/set-translation primary:ja target:en` (add `style:casual` for a relaxed tone)."

	// WelcomeMessage is sent to the installing user after OAuth.
	WelcomeMessage = "🎉 Thanks for installing me! Set your languages with `/set-translation primary:ja target:en`, then run `/translate-toggle` in every channel that should be translated. Open my App Home to manage glossary terms and mappings."
)
