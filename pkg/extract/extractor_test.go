package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractor_MarkdownImage(t *testing.T) {
	e := New("")

	url := e.ImageURL("Here is your picture: ![x](https://cdn.example.com/a.png)")
	assert.Equal(t, "https://cdn.example.com/a.png", url)
}

func TestExtractor_Refusal(t *testing.T) {
	e := New("")

	cases := []string{
		"Sorry, I cannot generate that.",
		"I'm sorry, I can't create that image.",
		"I am unable to generate this content.",
		"抱歉，我无法生成这张图片。",
	}
	for _, text := range cases {
		assert.Empty(t, e.ImageURL(text), "should refuse: %s", text)
	}
}

func TestExtractor_BareImageURLMidText(t *testing.T) {
	e := New("")

	url := e.ImageURL("here: https://host/img.jpg and more text")
	assert.Equal(t, "https://host/img.jpg", url)
}

func TestExtractor_PlaceholderAlwaysRejected(t *testing.T) {
	e := New("placehold.co")

	// Placeholder as the sole match still yields no result.
	assert.Empty(t, e.ImageURL("https://placehold.co/512x512?text=x"))
	// Even wrapped in markdown.
	assert.Empty(t, e.ImageURL("![img](https://placehold.co/1024.png)"))
	// Subdomains of the placeholder host too.
	assert.Empty(t, e.ImageURL("https://img.placehold.co/a.png"))
}

func TestExtractor_HTMLImgTag(t *testing.T) {
	e := New("")

	url := e.ImageURL(`<img src="https://files.example.com/out.webp" alt="result">`)
	assert.Equal(t, "https://files.example.com/out.webp", url)
}

func TestExtractor_CDNHostWithoutExtension(t *testing.T) {
	e := New("")

	url := e.ImageURL("Your image is ready at https://files.oaiusercontent.com/file-abc123 enjoy")
	assert.Equal(t, "https://files.oaiusercontent.com/file-abc123", url)
}

func TestExtractor_MarkdownTakesPriority(t *testing.T) {
	e := New("")

	text := "https://other.example.com/first.png then ![r](https://cdn.example.com/md.png)"
	assert.Equal(t, "https://cdn.example.com/md.png", e.ImageURL(text))
}

func TestExtractor_TrailingPunctuationTrimmed(t *testing.T) {
	e := New("")

	url := e.ImageURL("done! see https://host.example.com/pic.png.")
	assert.Equal(t, "https://host.example.com/pic.png", url)
}

func TestExtractor_NoURL(t *testing.T) {
	e := New("")

	assert.Empty(t, e.ImageURL("a lovely description with no link at all"))
	assert.Empty(t, e.ImageURL(""))
}

func TestExtractor_QueryStringPreserved(t *testing.T) {
	e := New("")

	url := e.ImageURL("result: https://cdn.example.com/a.png?sig=abc123")
	assert.Equal(t, "https://cdn.example.com/a.png?sig=abc123", url)
}
