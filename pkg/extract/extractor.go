// Package extract mines an image URL out of unstructured model output.
// The provider answers with chat text, not a structured image payload, so
// extraction is a prioritized list of heuristic matchers with a placeholder
// post-filter.
package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// refusalPhrases mark responses where the model declined to generate.
// Matched case-insensitively as substrings.
var refusalPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"i cannot",
	"i can't",
	"can't create",
	"cannot create",
	"unable to generate",
	"unable to create",
	"against my guidelines",
	"content policy",
	"无法生成",
	"抱歉",
}

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^\s)]+)\)`)
	imageExtURLRe   = regexp.MustCompile(`(?i)https?://[^\s"'<>)\]]+\.(?:jpg|jpeg|png|gif|webp|bmp)(?:\?[^\s"'<>)\]]*)?`)
	htmlImgRe       = regexp.MustCompile(`(?i)<img[^>]+src=["']?(https?://[^\s"'<>]+)["']?`)
	anyURLRe        = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
)

// cdnHosts are providers known to serve generated images even without an
// image file extension in the path.
var cdnHosts = []string{
	"filesystem.site",
	"videos.openai.com",
	"oaiusercontent.com",
	"cdn.openai.com",
	"replicate.delivery",
	"cloudfront.net",
	"aliyuncs.com",
}

// Extractor locates an image URL inside raw chat-completion text.
type Extractor struct {
	placeholderHost string
}

// New creates an extractor. placeholderHost names the host whose URLs are
// never accepted as results (the system's own placeholder images, which the
// provider sometimes echoes back).
func New(placeholderHost string) *Extractor {
	if placeholderHost == "" {
		placeholderHost = "placehold.co"
	}
	return &Extractor{placeholderHost: placeholderHost}
}

// ImageURL returns the first usable image URL in text, or "" when the text
// is a refusal or contains no usable URL. Matchers run in priority order;
// the first match wins, then the placeholder filter applies.
func (e *Extractor) ImageURL(text string) string {
	if text == "" || e.isRefusal(text) {
		return ""
	}

	if m := markdownImageRe.FindStringSubmatch(text); m != nil {
		return e.accept(m[1])
	}
	if m := imageExtURLRe.FindString(text); m != "" {
		return e.accept(m)
	}
	if m := htmlImgRe.FindStringSubmatch(text); m != nil {
		return e.accept(m[1])
	}
	if m := e.cdnURL(text); m != "" {
		return e.accept(m)
	}
	// Last resort: any URL that is not our own placeholder
	if m := anyURLRe.FindString(text); m != "" {
		return e.accept(m)
	}
	return ""
}

func (e *Extractor) isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (e *Extractor) cdnURL(text string) string {
	for _, raw := range anyURLRe.FindAllString(text, -1) {
		host := hostOf(raw)
		for _, cdn := range cdnHosts {
			if host == cdn || strings.HasSuffix(host, "."+cdn) {
				return raw
			}
		}
	}
	return ""
}

// accept applies the placeholder post-filter. A placeholder-host URL is
// always treated as "no image produced", even as the sole match.
func (e *Extractor) accept(raw string) string {
	trimmed := strings.TrimRight(raw, ".,;!?")
	host := hostOf(trimmed)
	if host == "" {
		return ""
	}
	if host == e.placeholderHost || strings.HasSuffix(host, "."+e.placeholderHost) {
		return ""
	}
	return trimmed
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
