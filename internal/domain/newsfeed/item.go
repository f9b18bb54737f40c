// Package newsfeed contains the parsed kindergarten newsfeed model.
// The feed is live-only data: it is fetched on demand and never archived.
package newsfeed

import "fmt"

// Item is one feed entry with a pre-built human-readable summary.
type Item struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Summarize builds the short summary line for a feed entry.
// Invoices get title, due date and amount; everything else leads with the
// author name.
func Summarize(itemType, title, description, author, due, amount string) string {
	if itemType == "invoice" {
		summary := title
		if due != "" {
			summary += " — " + due
		}
		if amount != "" {
			summary += " — " + amount
		}
		return summary
	}

	if title != "" {
		return fmt.Sprintf("%s: %s", author, title)
	}
	if description != "" {
		short := description
		if len([]rune(short)) > 120 {
			short = string([]rune(short)[:120]) + "…"
		}
		return fmt.Sprintf("%s: %s", author, short)
	}
	return fmt.Sprintf("New post from %s", author)
}
