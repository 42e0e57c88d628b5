package utils

// Minimal server-side i18n for fixed keys: health message and the onboarding
// questionnaire.

// SupportedLocales lists the locales with a translation table, default first.
var SupportedLocales = []string{"en", "es"}

var translations = map[string]map[string]string{
	"en": {
		"health.ok":           "ok",
		"question.1.text":     "What's your name?",
		"question.1.subtitle": "Let's start with the basics",
		"question.2.text":     "Why are you here today at AI Summit Barcelona?",
		"question.2.subtitle": "Tell us your motivation",
		"question.3.text":     "Tell us about the topics that interest you most right now?",
		"question.3.subtitle": "Share your passions",
		"question.4.text":     "What would be a successful conference according to your goals?",
		"question.4.subtitle": "Define your success",
	},
	"es": {
		"health.ok":           "ok",
		"question.1.text":     "¿Cómo te llamas?",
		"question.1.subtitle": "Empecemos por lo básico",
		"question.2.text":     "¿Por qué estás hoy en el AI Summit Barcelona?",
		"question.2.subtitle": "Cuéntanos tu motivación",
		"question.3.text":     "¿Qué temas te interesan más ahora mismo?",
		"question.3.subtitle": "Comparte tus pasiones",
		"question.4.text":     "¿Qué haría que esta conferencia fuera un éxito para ti?",
		"question.4.subtitle": "Define tu éxito",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
