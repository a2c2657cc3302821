package genai

import "regexp"

var pricingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)R\$\s*\d+[.,]?\d*`),
	regexp.MustCompile(`(?i)\d+\s*reais`),
	regexp.MustCompile(`(?i)\bmensalidade\b.*\d`),
}

var illegalClaimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)zero\s+car[êe]ncia`),
	regexp.MustCompile(`(?i)sem\s+car[êe]ncia`),
	regexp.MustCompile(`(?i)cobertura\s+imediata`),
	regexp.MustCompile(`(?i)aprova[cç][aã]o\s+garantida`),
}

var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcpf\b`),
	regexp.MustCompile(`(?i)\brg\b`),
	regexp.MustCompile(`(?i)hist[oó]rico\s+m[eé]dico`),
	regexp.MustCompile(`(?i)doen[cç]as\s+pr[eé]-existentes`),
	regexp.MustCompile(`(?i)cart[aã]o\s+de\s+cr[eé]dito`),
	regexp.MustCompile(`(?i)\bsenha\b`),
}

// sourceOf strips the case-insensitive flag so violations read like the rule.
func sourceOf(re *regexp.Regexp) string {
	return re.String()[len("(?i)"):]
}

// Violations lists the compliance rules text breaks: exact prices,
// claims forbidden by health-plan regulation and requests for sensitive data.
func Violations(text string) []string {
	var out []string
	for _, p := range pricingPatterns {
		if p.MatchString(text) {
			out = append(out, "Contains exact pricing")
			break
		}
	}
	for _, p := range illegalClaimPatterns {
		if p.MatchString(text) {
			out = append(out, "Illegal claim: "+sourceOf(p))
		}
	}
	for _, p := range sensitiveDataPatterns {
		if p.MatchString(text) {
			out = append(out, "Requests sensitive data: "+sourceOf(p))
		}
	}
	return out
}

// IsCompliant reports whether text breaks no rule.
func IsCompliant(text string) bool {
	return len(Violations(text)) == 0
}
