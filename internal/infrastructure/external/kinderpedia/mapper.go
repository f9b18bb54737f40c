package kinderpedia

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/newsfeed"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
)

// Mapper converts raw API DTOs into domain payloads.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// foodTypeMap translates remote meal type codes. "mp" and "mp2" are the
// two lunch courses and are merged into one lunch entry.
var foodTypeMap = map[string]timeline.MealType{
	"md":  timeline.MealBreakfast,
	"mp":  timeline.MealLunch,
	"mp2": timeline.MealLunch,
	"g":   timeline.MealSnack,
}

var (
	clockPattern   = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
	napSpanPattern = regexp.MustCompile(`(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)
)

// MapChildren joins the account list with the children list and returns
// one Child per active account.
func (m *Mapper) MapChildren(resp *coreResponse) ([]*child.Child, error) {
	byID := make(map[int]childDTO, len(resp.Result.Children))
	for _, c := range resp.Result.Children {
		byID[c.ID] = c
	}

	var children []*child.Child
	for _, acc := range resp.Result.AvailableAccounts {
		if acc.Status != "active" {
			continue
		}
		dto, ok := byID[acc.ChildID]
		if !ok {
			continue
		}

		c, err := child.New(acc.ChildID, acc.KindergartenID, dto.FirstName, dto.LastName, acc.KindergartenName)
		if err != nil {
			return nil, err
		}
		c.BirthDate = dto.BirthDate
		c.Gender = child.Gender(dto.Gender)
		children = append(children, c)
	}
	return children, nil
}

// MapTimeline flattens a raw weekly timeline into a WeekPayload with one
// entry per reported day, sorted by date.
func (m *Mapper) MapTimeline(resp *timelineResponse) *timeline.WeekPayload {
	payload := &timeline.WeekPayload{}
	if resp == nil || resp.Result.DailyTimeline == nil {
		return payload
	}

	dates := make([]string, 0, len(resp.Result.DailyTimeline.Days))
	for date := range resp.Result.DailyTimeline.Days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		day := m.mapDay(date, resp.Result.DailyTimeline.Days[date])
		payload.Days = append(payload.Days, day)
	}
	return payload
}

func (m *Mapper) mapDay(date string, dto dayDTO) timeline.DayPayload {
	day := timeline.DayPayload{Date: date}

	// Two lunch courses may each carry a percent; average them like the
	// Kinderpedia app does.
	var lunchPercents []float64

	for _, item := range dto.Data {
		switch {
		case item.ID == "checkin":
			day.CheckIn = firstClock(item.Subtitle)

		case item.ID == "nap":
			if match := napSpanPattern.FindStringSubmatch(item.Subtitle); match != nil {
				day.NapStart = padClock(match[1])
				day.NapEnd = padClock(match[2])
			}

		case item.ID == "absence":
			day.Absence = mapAbsence(item.Subtitle)

		case strings.HasPrefix(item.ID, "food_"):
			if item.Details == nil || item.Details.Food == nil {
				continue
			}
			for _, meal := range item.Details.Food.Meals {
				m.mapMeal(&day, meal, &lunchPercents)
			}
		}
	}

	if len(lunchPercents) > 0 {
		avg := average(lunchPercents)
		if day.Meals == nil {
			day.Meals = make(map[timeline.MealType]timeline.MealPayload)
		}
		lunch := day.Meals[timeline.MealLunch]
		lunch.Percent = &avg
		day.Meals[timeline.MealLunch] = lunch
	}

	return day
}

func (m *Mapper) mapMeal(day *timeline.DayPayload, dto mealDTO, lunchPercents *[]float64) {
	mealType, ok := foodTypeMap[dto.Type]
	if !ok {
		return
	}

	if day.Meals == nil {
		day.Meals = make(map[timeline.MealType]timeline.MealPayload)
	}
	meal := day.Meals[mealType]

	for _, menu := range dto.Menus {
		if menu.Name != "" {
			meal.Items = append(meal.Items, menu.Name)
		}
	}
	if len(dto.Menus) > 0 {
		meal.Kcal += int(math.Round(dto.Totals.Kcal))
		meal.WeightGrams += int(math.Round(dto.Totals.Weight))
	}

	if dto.Percent != nil {
		if mealType == timeline.MealLunch {
			*lunchPercents = append(*lunchPercents, *dto.Percent)
		} else if mealType == timeline.MealBreakfast {
			percent := int(math.Round(*dto.Percent))
			meal.Percent = &percent
		}
		// snack has no consumption percentage semantics
	}

	day.Meals[mealType] = meal
}

// MapNewsfeed converts raw feed entries into summarized items.
// Gallery entries are skipped: they add noise and no actionable data.
func (m *Mapper) MapNewsfeed(resp *newsfeedResponse) []newsfeed.Item {
	var items []newsfeed.Item
	if resp == nil {
		return items
	}

	for _, entry := range resp.Result.Feed {
		if entry.Type == "gallery" {
			continue
		}

		author := strings.TrimSpace(entry.User.FirstName + " " + entry.User.LastName)
		description := entry.Content.Description
		if len(description) > 500 {
			description = description[:500]
		}

		items = append(items, newsfeed.Item{
			ID:          entry.ID,
			Type:        entry.Type,
			Summary:     newsfeed.Summarize(entry.Type, entry.Content.Title, entry.Content.Description, author, entry.Content.Subtitle1, entry.Content.Subtitle2),
			Title:       entry.Content.Title,
			Description: description,
			Date:        entry.DateFriendly,
		})
	}
	return items
}

func mapAbsence(subtitle string) timeline.Absence {
	if strings.Contains(strings.ToLower(subtitle), "unmotivated") {
		return timeline.AbsenceUnmotivated
	}
	return timeline.AbsenceMotivated
}

// firstClock extracts the first "HH:MM" token from a subtitle such as
// "08:10" or "08:10 - 17:45".
func firstClock(subtitle string) string {
	if match := clockPattern.FindString(subtitle); match != "" {
		return padClock(match)
	}
	return ""
}

// padClock normalizes "8:10" to "08:10".
func padClock(clock string) string {
	if len(clock) == 4 {
		return "0" + clock
	}
	return clock
}

func average(values []float64) int {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return int(math.Round(sum / float64(len(values))))
}
