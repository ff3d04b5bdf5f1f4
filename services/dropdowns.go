package services

// UnitOptions are the unit spellings offered in the import template, one
// per measuring rule.
var UnitOptions = []string{
	"متر مربع",
	"متر مکعب",
	"کیلوگرم",
	"متر",
	"عدد",
	"m2",
	"m3",
	"kg",
	"meter",
	"each",
}

// DisciplineOptions returns the discipline values a price list may carry.
func DisciplineOptions() []string {
	out := make([]string, len(Disciplines))
	for i, d := range Disciplines {
		out[i] = string(d)
	}
	return out
}
