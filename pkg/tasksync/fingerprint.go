package tasksync

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the equality key over request parameters used for
// duplicate-submission detection. Identical prompt/image/style/ratio
// combinations map to the same fingerprint.
func Fingerprint(prompt, image, style, aspectRatio string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(image))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(style)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(aspectRatio)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
