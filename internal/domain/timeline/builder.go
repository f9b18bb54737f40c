package timeline

import (
	"sort"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// Build normalizes a raw weekly payload into a WeekRecord.
//
// It is a pure function of its input: identical payloads always yield
// identical records, which is what makes archived records safe to treat
// as immutable. The Monday key is derived from the day dates in the
// payload; when no date parses, it falls back to the week at weekOffset
// relative to now.
//
// Days that fail to parse are skipped. A nap with only one of start/end
// present yields no NapSpan. Snack percent is always dropped: the remote
// reports no consumption percentage for snacks.
func Build(childKey string, payload *WeekPayload, weekOffset int, now time.Time) (*WeekRecord, error) {
	if childKey == "" {
		return nil, shared.NewDomainError("timeline", "Build", shared.ErrEmptyValue, "child key is required")
	}

	record := &WeekRecord{
		ChildKey:  childKey,
		FetchedAt: now.UTC(),
	}

	if payload != nil {
		for _, raw := range payload.Days {
			day, ok := buildDay(raw, now.Location())
			if !ok {
				continue
			}
			record.Days = append(record.Days, day)
		}
	}

	sort.Slice(record.Days, func(i, j int) bool {
		return record.Days[i].Date.Before(record.Days[j].Date)
	})

	if len(record.Days) > 0 {
		record.Monday = timeutil.MondayOf(record.Days[0].Date)
	} else {
		record.Monday = timeutil.WeekStart(now, weekOffset)
	}

	return record, nil
}

func buildDay(raw DayPayload, loc *time.Location) (Day, bool) {
	date, err := time.ParseInLocation("2006-01-02", raw.Date, loc)
	if err != nil {
		return Day{}, false
	}

	day := Day{
		Date:    date,
		CheckIn: raw.CheckIn,
		Absence: raw.Absence,
	}

	if raw.NapStart != "" && raw.NapEnd != "" {
		start, okStart := timeutil.AtClock(date, raw.NapStart)
		end, okEnd := timeutil.AtClock(date, raw.NapEnd)
		if okStart && okEnd && end.After(start) {
			span := NapSpan{Start: start, End: end}
			day.Nap = &span
			day.NapMinutes = span.Minutes()
		}
	}

	if len(raw.Meals) > 0 {
		day.Meals = make(map[MealType]Meal, len(raw.Meals))
		for _, mealType := range MealOrder {
			raw, ok := raw.Meals[mealType]
			if !ok {
				continue
			}
			meal := Meal{
				Items:       append([]string(nil), raw.Items...),
				Kcal:        raw.Kcal,
				WeightGrams: raw.WeightGrams,
			}
			if mealType != MealSnack && raw.Percent != nil {
				percent := clampPercent(*raw.Percent)
				meal.Percent = &percent
			}
			day.Meals[mealType] = meal
		}
	}

	return day, true
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
