package answer

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/hatemua/telegBot/internal/prefs"
	"gopkg.in/yaml.v3"
)

const defaultSystemEN = `You are a careful, knowledgeable assistant.
Respond only in {{.LanguageName}}.
If the question is written in another language, first translate or briefly summarize it, then answer.
{{- if .DetectedLanguage }}
The question was transcribed from audio; the detected spoken language is "{{.DetectedLanguage}}".
{{- end }}
Cite primary sources briefly when they support the answer.
Stay neutral: avoid sectarian bias and do not favor one school of thought over another.`

const defaultSystemAR = `أنت مساعد دقيق وواسع المعرفة.
أجب باللغة العربية فقط.
إذا كان السؤال مكتوبًا بلغة أخرى، فترجمه أو لخّصه بإيجاز أولًا ثم أجب.
{{- if .DetectedLanguage }}
السؤال منسوخ من تسجيل صوتي، واللغة المنطوقة المكتشفة هي "{{.DetectedLanguage}}".
{{- end }}
استشهد بالمصادر الأولية بإيجاز عندما تدعم الإجابة.
التزم الحياد: تجنّب التحيّز الطائفي ولا تفضّل مذهبًا على آخر.`

type templateData struct {
	LanguageName     string
	DetectedLanguage string
}

// Templates holds one parsed system-prompt template per response language.
type Templates struct {
	byLang map[prefs.Language]*template.Template
}

func DefaultTemplates() Templates {
	return mustTemplates(map[prefs.Language]string{
		prefs.English: defaultSystemEN,
		prefs.Arabic:  defaultSystemAR,
	})
}

// promptFile is the optional YAML override, keyed by language code:
//
//	system:
//	  en: |
//	    ...
//	  ar: |
//	    ...
type promptFile struct {
	System map[string]string `yaml:"system"`
}

// LoadTemplates reads a YAML prompt override file. Languages missing from
// the file keep the built-in template.
func LoadTemplates(path string) (Templates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, err
	}
	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return Templates{}, fmt.Errorf("parse prompts file: %w", err)
	}

	sources := map[prefs.Language]string{
		prefs.English: defaultSystemEN,
		prefs.Arabic:  defaultSystemAR,
	}
	for code, body := range pf.System {
		lang, ok := prefs.Normalize(code)
		if !ok {
			return Templates{}, fmt.Errorf("prompts file: unsupported language %q", code)
		}
		if strings.TrimSpace(body) == "" {
			continue
		}
		sources[lang] = body
	}

	byLang := make(map[prefs.Language]*template.Template, len(sources))
	for lang, src := range sources {
		t, err := template.New("system_" + string(lang)).Option("missingkey=error").Parse(src)
		if err != nil {
			return Templates{}, fmt.Errorf("parse system prompt for %s: %w", lang, err)
		}
		byLang[lang] = t
	}
	return Templates{byLang: byLang}, nil
}

func mustTemplates(sources map[prefs.Language]string) Templates {
	byLang := make(map[prefs.Language]*template.Template, len(sources))
	for lang, src := range sources {
		byLang[lang] = template.Must(template.New("system_" + string(lang)).Option("missingkey=error").Parse(src))
	}
	return Templates{byLang: byLang}
}

// Render produces the system prompt for the target language. detectedCode
// is included as a hint when it names a language other than the target.
func (t Templates) Render(target prefs.Language, detectedCode string) (string, error) {
	tmpl, ok := t.byLang[target]
	if !ok {
		tmpl, ok = t.byLang[prefs.English]
		if !ok {
			return "", fmt.Errorf("no system prompt template for %s", target)
		}
	}

	detected := strings.ToLower(strings.TrimSpace(detectedCode))
	if detected == string(target) {
		detected = ""
	}
	var b bytes.Buffer
	if err := tmpl.Execute(&b, templateData{
		LanguageName:     target.Name(),
		DetectedLanguage: detected,
	}); err != nil {
		return "", err
	}
	return b.String(), nil
}
