package template

import (
	"testing"
	"time"
)

// 2024-06-03 was a Monday.
var monday = time.Date(2024, time.June, 3, 9, 5, 7, 0, time.UTC)

func TestFormatMoment(t *testing.T) {
	cases := []struct {
		format string
		want   string
	}{
		{"YYYY-MM-DD", "2024-06-03"},
		{"YY-M-D", "24-6-3"},
		{"dddd D de MMMM de YYYY", "Lunes 3 de Junio de 2024"},
		{"ddd, MMM", "Lun, Jun"},
		{"HH:mm:ss", "09:05:07"},
		{"sin tokens", "sin tokens"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FormatMoment(monday, tc.format); got != tc.want {
			t.Errorf("FormatMoment(%q) = %q, want %q", tc.format, got, tc.want)
		}
	}
}

func TestFormatMomentSpanishNames(t *testing.T) {
	// Spot-check the localization tables across the year and week.
	days := map[time.Time]string{
		time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC): "Domingo",
		time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC): "Miércoles",
		time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC): "Sábado",
	}
	for date, want := range days {
		if got := FormatMoment(date, "dddd"); got != want {
			t.Errorf("dddd of %s = %q, want %q", date.Format("2006-01-02"), got, want)
		}
	}

	months := map[time.Month]string{
		time.January:   "Enero",
		time.May:       "Mayo",
		time.September: "Septiembre",
		time.December:  "Diciembre",
	}
	for month, want := range months {
		date := time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC)
		if got := FormatMoment(date, "MMMM"); got != want {
			t.Errorf("MMMM of %v = %q, want %q", month, got, want)
		}
	}
}

func TestExpandDates(t *testing.T) {
	t.Run("formatted and simple", func(t *testing.T) {
		in := "Hoy {{date:dddd D}} ({{fecha}}); también {{date}}."
		want := "Hoy Lunes 3 (2024-06-03); también 2024-06-03."
		if got := ExpandDates(in, monday); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("created and updated literals", func(t *testing.T) {
		in := "---\ncreated: YYYY-MM-DD\nupdated: \"YYYY-MM-DD\"\n---\n"
		want := "---\ncreated: 2024-06-03\nupdated: \"2024-06-03\"\n---\n"
		if got := ExpandDates(in, monday); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("literal outside created/updated untouched", func(t *testing.T) {
		in := "formato YYYY-MM-DD de ejemplo"
		if got := ExpandDates(in, monday); got != in {
			t.Errorf("got %q", got)
		}
	})
}

func TestExpand(t *testing.T) {
	in := "# {{title}}\ncreated: {{date:YYYY-MM-DD}}\nday: {{date:dddd}}\n"
	want := "# Today\ncreated: 2024-06-03\nday: Lunes\n"
	got := Expand(in, Values{Title: "Today"}, monday)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	t.Run("spanish aliases and time", func(t *testing.T) {
		in := "{{titulo}} | {{descripcion}} | {{hora}} | {{carpeta}} | {{etiquetas}}"
		got := Expand(in, Values{
			Title:       "Nota",
			Description: "breve",
			Folder:      "02_Temas",
			Tags:        "python, go",
		}, monday)
		want := "Nota | breve | 09:05 | 02_Temas | python, go"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("unknown placeholder preserved", func(t *testing.T) {
		in := "{{desconocido}}"
		if got := Expand(in, Values{}, monday); got != in {
			t.Errorf("got %q", got)
		}
	})
}
