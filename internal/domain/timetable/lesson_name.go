package timetable

import "strings"

type abbreviation struct {
	short     string
	long      string
	wholeWord bool // replace anywhere, not only as a prefix
}

// abbreviations are applied in order.
var abbreviations = []abbreviation{
	{short: "zaj.z-wych.", long: "zajęcia z wychowawcą"},
	{short: "WF", long: "wychowanie fizyczne"},
	{short: "WOS", long: "wiedza o społeczeństwie"},
	{short: "TOK", long: "theory of knowledge"},
	{short: "j.", long: "język "},
	{short: "hiszp.", long: "hiszpański", wholeWord: true},
	{short: "ang.", long: "angielski", wholeWord: true},
	{short: "przedsięb.", long: "przedsiębiorczość", wholeWord: true},
}

// LessonName expands a timetable lesson code, e.g. "j.ang." becomes
// "język angielski" and "r-fiz" becomes "fiz rozszerzona".
func LessonName(code string) string {
	switch code {
	case "mat", "r-mat":
		return "matematyka rozszerzona"
	case "mat.":
		return "matematyka"
	}

	extended := strings.HasPrefix(code, "r-")
	name := strings.TrimPrefix(code, "r-")
	for _, a := range abbreviations {
		if a.wholeWord || strings.HasPrefix(name, a.short) {
			name = strings.ReplaceAll(name, a.short, a.long)
		}
	}
	if extended {
		name += " rozszerzona"
	}
	return name
}
