package timeline

// WeekPayload is the week-shaped payload a WeekFetcher returns: one entry
// per day the remote reported, in undefined order, with fields already
// extracted from the raw transport format but not yet normalized.
//
// An empty payload (no days, or no day with real data) is the
// enrollment-boundary signal.
type WeekPayload struct {
	Days []DayPayload
}

// DayPayload is one raw day entry.
type DayPayload struct {
	Date     string // ISO date as reported, e.g. "2026-02-23"
	CheckIn  string // "HH:MM", empty when unknown
	NapStart string // "HH:MM", empty when unknown
	NapEnd   string // "HH:MM", empty when unknown
	Absence  Absence
	Meals    map[MealType]MealPayload
}

// MealPayload is one raw meal entry.
type MealPayload struct {
	Items       []string
	Percent     *int
	Kcal        int
	WeightGrams int
}

// Empty reports whether the payload carries no days at all.
func (p *WeekPayload) Empty() bool {
	return p == nil || len(p.Days) == 0
}
