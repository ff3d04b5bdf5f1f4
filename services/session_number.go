package services

import (
	"fmt"
	"strconv"
	"strings"
)

// Discipline is the trade category a price list and its sessions belong to.
type Discipline string

const (
	DisciplineCivil      Discipline = "civil"
	DisciplineMechanical Discipline = "mechanical"
	DisciplineElectrical Discipline = "electrical"
	DisciplineOther      Discipline = "other"
)

// Disciplines lists the known disciplines in display order.
var Disciplines = []Discipline{DisciplineCivil, DisciplineMechanical, DisciplineElectrical, DisciplineOther}

// Label returns the Persian display name used on printed sessions.
func (d Discipline) Label() string {
	switch d {
	case DisciplineCivil:
		return "ابنیه"
	case DisciplineMechanical:
		return "مکانیک"
	case DisciplineElectrical:
		return "برق"
	}
	return "سایر"
}

// SessionNumberPrefix is the two-letter prefix of a discipline's session
// numbers.
func SessionNumberPrefix(d Discipline) string {
	switch d {
	case DisciplineCivil:
		return "CV"
	case DisciplineMechanical:
		return "ME"
	case DisciplineElectrical:
		return "EL"
	}
	return "OT"
}

// formatSessionNumber builds "<PP>-<NNNN>".
func formatSessionNumber(d Discipline, sequence int) string {
	return fmt.Sprintf("%s-%04d", SessionNumberPrefix(d), sequence)
}

// ParseSessionSequence extracts the trailing numeric suffix of a session
// number such as "CV-0007".
func ParseSessionSequence(number string) (int, bool) {
	number = strings.TrimSpace(number)
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextSessionNumber returns the number following previous, the session
// number of the most recent session for the same project and discipline.
// An empty or malformed previous number restarts the sequence at 1.
func NextSessionNumber(d Discipline, previous string) string {
	seq, ok := ParseSessionSequence(previous)
	if !ok {
		return formatSessionNumber(d, 1)
	}
	return formatSessionNumber(d, seq+1)
}
