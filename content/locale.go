package content

import (
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

// Locale holds the date vocabulary of one supported language.
type Locale struct {
	Tag   language.Tag
	dates monday.Locale
	at    string
	// Strings used by the page templates.
	Loading      string
	LoadMore     string
	LoadFailed   string
	PreviousPost string
	NextPost     string
	EditedPrefix string
	ExitPreview  string
	MinutesUnit  string
	NotFound     string
	ServerError  string
	BackHome     string
}

var (
	portuguese = Locale{
		Tag:          language.BrazilianPortuguese,
		dates:        monday.LocalePtBR,
		at:           "às",
		Loading:      "Carregando...",
		LoadMore:     "Carregar mais posts",
		LoadFailed:   "Não foi possível carregar mais posts.",
		PreviousPost: "Post anterior",
		NextPost:     "Próximo post",
		EditedPrefix: "* editado em",
		ExitPreview:  "Sair do modo Preview",
		MinutesUnit:  "min",
		NotFound:     "Post não encontrado.",
		ServerError:  "Algo deu errado. Tente novamente em instantes.",
		BackHome:     "Voltar para o início",
	}
	english = Locale{
		Tag:          language.AmericanEnglish,
		dates:        monday.LocaleEnUS,
		at:           "at",
		Loading:      "Loading...",
		LoadMore:     "Load more posts",
		LoadFailed:   "Could not load more posts.",
		PreviousPost: "Previous post",
		NextPost:     "Next post",
		EditedPrefix: "* edited on",
		ExitPreview:  "Exit preview mode",
		MinutesUnit:  "min",
		NotFound:     "Post not found.",
		ServerError:  "Something went wrong. Please try again shortly.",
		BackHome:     "Back to home",
	}

	supported = []Locale{portuguese, english}
	matcher   = language.NewMatcher([]language.Tag{portuguese.Tag, english.Tag})
)

// MatchLocale returns the supported locale closest to lang. Unknown or
// unparsable tags fall back to Brazilian Portuguese.
func MatchLocale(lang string) Locale {
	tag, err := language.Parse(lang)
	if err != nil {
		return portuguese
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return portuguese
	}
	return supported[idx]
}

// FormatDate formats t as "dd MMM yyyy", e.g. "15 mar 2021".
func (l Locale) FormatDate(t time.Time) string {
	return monday.Format(t, "02 Jan 2006", l.dates)
}

// FormatDateTime formats t as "dd MMM yyyy <at> HH:mm", e.g.
// "19 mar 2021 às 15:49".
func (l Locale) FormatDateTime(t time.Time) string {
	return l.FormatDate(t) + " " + l.at + " " + t.Format("15:04")
}

// Lang returns the BCP 47 string of the locale, for the html lang attribute.
func (l Locale) Lang() string {
	return l.Tag.String()
}
