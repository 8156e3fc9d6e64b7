package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// OutputPrefix starts every rendered artifact name.
	OutputPrefix = "nightcore_"
	// OriginalPrefix starts every retained source download.
	OriginalPrefix = "original_"

	maxTitleRunes = 80
	fallbackTitle = "audio"
)

// OutputName returns nightcore_<unix>_<id8><ext>. The short id keeps two jobs
// finishing in the same second from colliding.
func OutputName(now time.Time, jobID, ext string) string {
	return fmt.Sprintf("%s%d_%s%s", OutputPrefix, now.Unix(), shortID(jobID), normalizeExt(ext))
}

// OriginalName returns original_<id8>_<title><ext> for a retained download.
func OriginalName(jobID, title, ext string) string {
	return fmt.Sprintf("%s%s_%s%s", OriginalPrefix, shortID(jobID), SanitizeTitle(title), normalizeExt(ext))
}

// SanitizeTitle folds a display title into a portable file name stem: accents
// are stripped and every run of characters other than letters, digits, or
// dashes collapses into a single underscore.
func SanitizeTitle(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	lastUnderscore := false
	count := 0
	for _, r := range folded {
		if count >= maxTitleRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if lastUnderscore {
				continue
			}
			b.WriteByte('_')
			lastUnderscore = true
		}
		count++
	}

	cleaned := strings.Trim(b.String(), "_-")
	if cleaned == "" {
		return fallbackTitle
	}
	return cleaned
}

// ValidName reports whether name is a bare file name safe to join onto the
// temp directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

func shortID(jobID string) string {
	id := strings.ReplaceAll(strings.TrimSpace(jobID), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "job"
	}
	return id
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}
