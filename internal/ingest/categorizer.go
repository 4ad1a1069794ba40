package ingest

import "strings"

// rule maps description keywords to a category. Rules are checked in
// order, first match wins.
type rule struct {
	keywords []string
	category string
}

var rules = []rule{
	{[]string{"salary", "payroll", "wage"}, "Salary"},
	{[]string{"grocery", "supermarket", "food"}, "Food & Dining"},
	{[]string{"gas", "fuel", "uber", "taxi"}, "Transportation"},
	{[]string{"netflix", "spotify", "movie", "entertainment"}, "Entertainment"},
	{[]string{"electric", "water", "internet", "phone"}, "Bills & Utilities"},
	{[]string{"amazon", "shopping", "store"}, "Shopping"},
	{[]string{"hospital", "doctor", "pharmacy"}, "Healthcare"},
	{[]string{"hotel", "flight", "travel"}, "Travel"},
	{[]string{"school", "university", "education"}, "Education"},
	{[]string{"dividend", "interest", "investment"}, "Investment"},
}

// Categorize assigns a category from the description's keywords,
// falling back to Other.
func Categorize(description string) string {
	lower := strings.ToLower(description)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return "Other"
}
