package sequence

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/routing-engine/internal/domain"
)

var pinyinArgs = func() pinyin.Args {
	args := pinyin.NewArgs()
	args.Style = pinyin.FirstLetter
	return args
}()

// Initials maps free-form type text to an uppercase ASCII code usable in a tag.
// Han characters contribute the first letter of their pinyin reading, Latin
// letters lose their diacritics, ASCII digits are kept and everything else
// (spaces, punctuation, other scripts) is dropped. "请购单" becomes "QGD".
func Initials(text string) (string, error) {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, strings.TrimSpace(text))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidTypeCode, err)
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.Is(unicode.Han, r):
			if letters := pinyin.LazyPinyin(string(r), pinyinArgs); len(letters) > 0 {
				b.WriteString(letters[0])
			}
		case r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		}
	}

	code := cases.Upper(language.Und).String(b.String())
	if code == "" {
		return "", fmt.Errorf("%w: %q has no usable characters", domain.ErrInvalidTypeCode, text)
	}
	return code, nil
}
