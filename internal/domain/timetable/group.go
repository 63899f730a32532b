package timetable

import (
	"github.com/class-bell/class-bell/internal/domain/shared"
)

// GroupTag identifies which part of the class a lesson or homework event is for.
type GroupTag string

// Known group tags. GroupEveryone is the wildcard.
const (
	GroupEveryone       GroupTag = "grupa_0"
	Group1              GroupTag = "grupa_1"
	Group2              GroupTag = "grupa_2"
	GroupReligion       GroupTag = "grupa_rel"
	GroupSpanish        GroupTag = "grupa_es"
	GroupFrench         GroupTag = "grupa_fr"
	GroupGermanBasic    GroupTag = "grupa_de1"
	GroupGermanExtended GroupTag = "grupa_de2"
)

// allGroups keeps declaration order; the wildcard comes first.
var allGroups = []GroupTag{
	GroupEveryone,
	Group1,
	Group2,
	GroupReligion,
	GroupSpanish,
	GroupFrench,
	GroupGermanBasic,
	GroupGermanExtended,
}

var groupSuffixes = map[GroupTag]string{
	GroupEveryone:       "",
	Group1:              "dla grupy pierwszej",
	Group2:              "dla grupy drugiej",
	GroupReligion:       "dla grupy religijnej",
	GroupSpanish:        "dla grupy hiszpańskiej",
	GroupFrench:         "dla grupy francuskiej",
	GroupGermanBasic:    "dla grupy niemieckiej z podstawą",
	GroupGermanExtended: "dla grupy niemieckiej z rozszerzeniem",
}

// AllGroups returns every known tag, wildcard first.
func AllGroups() []GroupTag {
	out := make([]GroupTag, len(allGroups))
	copy(out, allGroups)
	return out
}

// ParseGroupTag validates s against the known tags.
func ParseGroupTag(s string) (GroupTag, error) {
	g := GroupTag(s)
	if !g.Valid() {
		return "", shared.WrapError("timetable", "ParseGroupTag", shared.ErrInvalidInput,
			"unknown group tag", shared.ErrUnknownGroup)
	}
	return g, nil
}

// Valid reports whether g is a known tag.
func (g GroupTag) Valid() bool {
	_, ok := groupSuffixes[g]
	return ok
}

// IsEveryone reports whether g is the wildcard tag.
func (g GroupTag) IsEveryone() bool {
	return g == GroupEveryone
}

// Suffix is the phrase appended to a lesson name when only this group has it,
// e.g. "dla grupy pierwszej". Empty for the wildcard.
func (g GroupTag) Suffix() string {
	return groupSuffixes[g]
}

// candidates returns the wildcard plus memberships, deduplicated.
func candidates(memberships []GroupTag) map[GroupTag]bool {
	set := map[GroupTag]bool{GroupEveryone: true}
	for _, g := range memberships {
		set[g] = true
	}
	return set
}
