package kinderpedia

// Raw wire shapes of the Kinderpedia web API. The API wraps every response
// in a "result" envelope; field presence is inconsistent, so everything
// optional is a pointer or zero-value tolerant.

// loginResponse is the POST /auth response.
type loginResponse struct {
	Token    string `json:"token"`
	ExpireAt int64  `json:"expire_at"` // unix seconds
}

// coreResponse is the account/children envelope.
type coreResponse struct {
	Result coreResult `json:"result"`
}

type coreResult struct {
	AvailableAccounts []accountDTO `json:"available_accounts"`
	Children          []childDTO   `json:"children"`
}

type accountDTO struct {
	ChildID          int    `json:"child_id"`
	KindergartenID   int    `json:"kindergarten_id"`
	KindergartenName string `json:"kindergarten_name"`
	Status           string `json:"status"` // only "active" accounts are synced
	Avatar           string `json:"avatar,omitempty"`
}

type childDTO struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

// timelineResponse is the weekly timeline envelope. Days are keyed by ISO
// date; each day carries a flat list of typed items (check-in, nap,
// absence, food blocks).
type timelineResponse struct {
	Result timelineResult `json:"result"`
}

type timelineResult struct {
	DailyTimeline *dailyTimelineDTO `json:"dailytimeline"`
}

type dailyTimelineDTO struct {
	Days map[string]dayDTO `json:"days"`
}

type dayDTO struct {
	Data []itemDTO `json:"data"`
}

type itemDTO struct {
	ID       string      `json:"id"`       // "checkin", "nap", "absence", "food_*"
	Subtitle string      `json:"subtitle"` // free-text, e.g. "08:10" or "12:30 - 14:00 (1 h and 30 min)"
	Details  *detailsDTO `json:"details,omitempty"`
}

type detailsDTO struct {
	Food *foodDTO `json:"food,omitempty"`
}

type foodDTO struct {
	Meals []mealDTO `json:"meals"`
}

type mealDTO struct {
	Type    string    `json:"type"` // "md" breakfast, "mp"/"mp2" lunch courses, "g" snack
	Percent *float64  `json:"percent,omitempty"`
	Menus   []menuDTO `json:"menus,omitempty"`
	Totals  totalsDTO `json:"totals,omitempty"`
}

type menuDTO struct {
	Name string `json:"name"`
}

type totalsDTO struct {
	Kcal   float64 `json:"kcal"`
	Weight float64 `json:"weight"`
}

// newsfeedResponse is the newsfeed envelope.
type newsfeedResponse struct {
	Result newsfeedResult `json:"result"`
}

type newsfeedResult struct {
	Feed []feedEntryDTO `json:"feed"`
}

type feedEntryDTO struct {
	ID           int            `json:"id"`
	Type         string         `json:"type"`
	DateFriendly string         `json:"date_friendly,omitempty"`
	Content      feedContentDTO `json:"content"`
	User         feedUserDTO    `json:"user"`
}

type feedContentDTO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Subtitle1   string `json:"subtitle1,omitempty"` // invoice due date
	Subtitle2   string `json:"subtitle2,omitempty"` // invoice amount
}

type feedUserDTO struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
