// Package template expands note-template placeholders: caller-supplied
// fields like {{title}} (with Spanish aliases), Moment.js-style date
// formats in {{date:FORMAT}}, and the YYYY-MM-DD literals of created:
// and updated: front-matter lines. Month and weekday names render in
// Spanish.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var spanishMonths = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

var spanishMonthsShort = [12]string{
	"Ene", "Feb", "Mar", "Abr", "Mayo", "Jun",
	"Jul", "Ago", "Sep", "Oct", "Nov", "Dic",
}

// Indexed by time.Weekday (Sunday = 0).
var spanishDays = [7]string{
	"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado",
}

var spanishDaysShort = [7]string{
	"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb",
}

// Longest token first so YYYY wins over YY and MMMM over MM.
var momentTokens = []string{
	"YYYY", "YY",
	"MMMM", "MMM", "MM", "M",
	"dddd", "ddd",
	"DD", "D",
	"HH", "mm", "ss",
}

// FormatMoment renders t according to a Moment.js-like format string.
// Unrecognized characters pass through unchanged.
func FormatMoment(t time.Time, format string) string {
	var b strings.Builder
	b.Grow(len(format))
	for i := 0; i < len(format); {
		tok := matchToken(format[i:])
		if tok == "" {
			b.WriteByte(format[i])
			i++
			continue
		}
		b.WriteString(renderToken(t, tok))
		i += len(tok)
	}
	return b.String()
}

func matchToken(s string) string {
	for _, tok := range momentTokens {
		if strings.HasPrefix(s, tok) {
			return tok
		}
	}
	return ""
}

func renderToken(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return spanishMonths[t.Month()-1]
	case "MMM":
		return spanishMonthsShort[t.Month()-1]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "dddd":
		return spanishDays[t.Weekday()]
	case "ddd":
		return spanishDaysShort[t.Weekday()]
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	}
	return tok
}

var (
	formattedDate  = regexp.MustCompile(`\{\{(?:date|fecha):([^}]+)\}\}`)
	simpleDate     = regexp.MustCompile(`\{\{(?:date|fecha)\}\}`)
	createdLiteral = regexp.MustCompile(`(created:\s*["']?)YYYY-MM-DD(["']?)`)
	updatedLiteral = regexp.MustCompile(`(updated:\s*["']?)YYYY-MM-DD(["']?)`)
)

// ExpandDates substitutes every date placeholder in text against now:
// {{date:FORMAT}} and {{fecha:FORMAT}} through FormatMoment, the bare
// {{date}}/{{fecha}} as YYYY-MM-DD, and the literal YYYY-MM-DD value of
// created: or updated: lines.
func ExpandDates(text string, now time.Time) string {
	text = formattedDate.ReplaceAllStringFunc(text, func(m string) string {
		sub := formattedDate.FindStringSubmatch(m)
		return FormatMoment(now, sub[1])
	})
	day := now.Format("2006-01-02")
	text = simpleDate.ReplaceAllString(text, day)
	text = createdLiteral.ReplaceAllString(text, "${1}"+day+"${2}")
	text = updatedLiteral.ReplaceAllString(text, "${1}"+day+"${2}")
	return text
}

// Values carries the caller-supplied substitutions for field
// placeholders. Each field covers an English placeholder and its
// Spanish alias.
type Values struct {
	Title       string // {{title}}, {{titulo}}
	Description string // {{description}}, {{descripcion}}
	Folder      string // {{folder}}, {{carpeta}}
	Tags        string // {{tags}}, {{etiquetas}}
}

// Expand substitutes field placeholders from v, fills {{time}}/{{hora}}
// with the HH:mm of now, and then runs the date pass. Placeholders with
// no known expansion stay in the text.
func Expand(text string, v Values, now time.Time) string {
	clock := now.Format("15:04")
	pairs := [...]struct{ key, val string }{
		{"title", v.Title},
		{"titulo", v.Title},
		{"description", v.Description},
		{"descripcion", v.Description},
		{"time", clock},
		{"hora", clock},
		{"folder", v.Folder},
		{"carpeta", v.Folder},
		{"tags", v.Tags},
		{"etiquetas", v.Tags},
	}
	for _, p := range pairs {
		text = strings.ReplaceAll(text, "{{"+p.key+"}}", p.val)
	}
	return ExpandDates(text, now)
}
