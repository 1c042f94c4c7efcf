package router

import (
	"regexp"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain/search/intent"
)

// Time window labels.
const (
	WindowToday     = "today"
	WindowYesterday = "yesterday"
	WindowThisWeek  = "this_week"
	WindowLastWeek  = "last_week"
	WindowThisMonth = "this_month"
)

var (
	priorityPhrase = regexp.MustCompile(`\b(urgent|high|medium|low)[ -]priority\b`)
	priorityLabel  = regexp.MustCompile(`\bpriority:\s*(urgent|high|medium|low)\b`)
	priorityP      = regexp.MustCompile(`\bp([1-4])\b`)

	statusPhrase = regexp.MustCompile(`\b(open|closed|resolved|pending) tickets?\b`)
	statusLabel  = regexp.MustCompile(`\bstatus:\s*(open|closed|resolved|pending)\b`)

	tierPhrase = regexp.MustCompile(`\b(enterprise|premium|vip|free)[ -](tier|customers?|plan|accounts?)\b`)

	logFile = regexp.MustCompile(`\blog ?files?\b|\blogs attached\b`)
)

var pCodes = map[string]string{"1": "urgent", "2": "high", "3": "medium", "4": "low"}

// categoryCues maps an explicit word to the category it implies.
var categoryCues = []struct {
	category string
	words    []string
}{
	{"billing", []string{"billing", "invoice", "invoices", "refund", "refunds", "payment", "charge"}},
	{"account", []string{"password", "login", "signin", "2fa", "mfa"}},
	{"shipping", []string{"shipping", "delivery", "shipment", "tracking"}},
}

func extractFilters(lower, phrase string, words map[string]bool, now time.Time) intent.Filters {
	var f intent.Filters

	f.CreatedAt = timeWindow(phrase, words, now)

	for _, c := range categoryCues {
		if containsAny("", words, c.words) {
			f.Category = c.category
			break
		}
	}

	switch {
	case priorityPhrase.MatchString(lower):
		f.Priority = priorityPhrase.FindStringSubmatch(lower)[1]
	case priorityLabel.MatchString(lower):
		f.Priority = priorityLabel.FindStringSubmatch(lower)[1]
	case priorityP.MatchString(lower):
		f.Priority = pCodes[priorityP.FindStringSubmatch(lower)[1]]
	}

	switch {
	case statusPhrase.MatchString(lower):
		f.Status = statusPhrase.FindStringSubmatch(lower)[1]
	case statusLabel.MatchString(lower):
		f.Status = statusLabel.FindStringSubmatch(lower)[1]
	}

	if m := tierPhrase.FindStringSubmatch(lower); m != nil {
		f.CustomerTier = m[1]
	} else if words["vip"] {
		f.CustomerTier = "vip"
	}

	switch {
	case words["screenshot"] || words["screenshots"] || words["image"] || words["images"]:
		f.AttachmentType = "image"
	case words["pdf"]:
		f.AttachmentType = "pdf"
	case logFile.MatchString(lower):
		f.AttachmentType = "log"
	}

	return f
}

func timeWindow(phrase string, words map[string]bool, now time.Time) *intent.TimeWindow {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Monday-based week.
	monday := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch {
	case words["today"]:
		return &intent.TimeWindow{Label: WindowToday, From: day, To: day.AddDate(0, 0, 1)}
	case words["yesterday"]:
		return &intent.TimeWindow{Label: WindowYesterday, From: day.AddDate(0, 0, -1), To: day}
	case containsAny(phrase, nil, []string{"this week"}):
		return &intent.TimeWindow{Label: WindowThisWeek, From: monday, To: monday.AddDate(0, 0, 7)}
	case containsAny(phrase, nil, []string{"last week"}):
		return &intent.TimeWindow{Label: WindowLastWeek, From: monday.AddDate(0, 0, -7), To: monday}
	case containsAny(phrase, nil, []string{"this month"}):
		return &intent.TimeWindow{Label: WindowThisMonth, From: month, To: month.AddDate(0, 1, 0)}
	}
	return nil
}
