package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/talentsift/talentsift/internal/model"
)

var (
	emailFallbackPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneFallbackPattern    = regexp.MustCompile(`\(?\+?[0-9][0-9()\-. ]{7,}[0-9]`)
	linkedinFallbackPattern = regexp.MustCompile(`(?i)linkedin\.com/in/[A-Za-z0-9_-]+`)
)

// skillVocabulary is the keyword list used by the heuristic extractor when
// the language model cannot produce valid output. Matches are reported
// already normalized.
var skillVocabulary = []string{
	"python", "go", "golang", "java", "javascript", "typescript", "c++", "c#",
	"ruby", "rust", "php", "kotlin", "swift", "scala", "sql", "html", "css",
	"react", "angular", "vue", "django", "flask", "fastapi", "spring", "rails",
	"node.js", "docker", "kubernetes", "terraform", "ansible", "jenkins",
	"aws", "gcp", "azure", "linux", "git", "postgresql", "mysql", "mongodb",
	"redis", "kafka", "rabbitmq", "elasticsearch", "graphql", "rest", "grpc",
	"ci/cd", "machine learning", "data analysis", "agile", "scrum",
}

// fallbackCandidate extracts identity-bearing fields deterministically.
// Returns nil when name or email cannot be recovered; such a document is a
// hard parse failure.
func fallbackCandidate(text string) *model.Candidate {
	email := emailFallbackPattern.FindString(text)
	if email == "" {
		return nil
	}

	name := guessName(text)
	if name == "" {
		return nil
	}

	return &model.Candidate{
		Name:     name,
		Email:    email,
		Phone:    strings.TrimSpace(phoneFallbackPattern.FindString(text)),
		Linkedin: linkedinFallbackPattern.FindString(text),
		Skills:   matchVocabulary(text),
	}
}

// fallbackJob extracts a job description's identity fields from labeled
// lines. Returns nil when title, company or location cannot be recovered.
func fallbackJob(text string) *model.JobDescription {
	title := firstLine(text)
	company := labeledValue(text, "company")
	location := labeledValue(text, "location")
	if title == "" || company == "" || location == "" {
		return nil
	}

	return &model.JobDescription{
		Title:    title,
		Company:  company,
		Location: location,
		Requirements: model.Requirements{
			RequiredSkills: matchVocabulary(text),
		},
	}
}

// guessName takes the first line that looks like a person's name: a few
// words, letters only, no contact details mixed in.
func guessName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.ContainsAny(line, "@:/") {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 1 || len(words) > 5 || len(line) > 60 {
			continue
		}
		plausible := true
		for _, r := range line {
			if !unicode.IsLetter(r) && r != ' ' && r != '.' && r != '-' && r != '\'' {
				plausible = false
				break
			}
		}
		if !plausible {
			continue
		}
		return titleCase(line)
	}
	return ""
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 80 {
			continue
		}
		return line
	}
	return ""
}

func labeledValue(text, label string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, label+":") {
			return strings.TrimSpace(line[len(label)+1:])
		}
	}
	return ""
}

func matchVocabulary(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, skill := range skillVocabulary {
		if containsTerm(lower, skill) {
			found = append(found, skill)
		}
	}
	return found
}

// containsTerm checks for the term bounded by non-letter characters, so
// "java" does not match inside "javascript".
func containsTerm(text, term string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], term)
		if pos == -1 {
			return false
		}
		pos += idx

		before := pos == 0 || !isWordChar(rune(text[pos-1]))
		afterIdx := pos + len(term)
		after := afterIdx >= len(text) || !isWordChar(rune(text[afterIdx]))
		if before && after {
			return true
		}
		idx = pos + len(term)
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// titleCase fixes shouting headers like "JOHN SMITH" without touching
// mixed-case names.
func titleCase(s string) string {
	if s != strings.ToUpper(s) {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
