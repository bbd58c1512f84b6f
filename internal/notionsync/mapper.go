package notionsync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names shared by the goal and transaction databases.
const (
	PropID          = "Dashboard ID"
	PropFingerprint = "Fingerprint"
)

// GoalToNotionProperties maps a goal to the goals database.
func GoalToNotionProperties(g domain.Goal) notionapi.Properties {
	props := notionapi.Properties{
		"Title":         title(g.Title),
		PropID:          richText(g.ID),
		PropFingerprint: richText(Fingerprint(g)),
		"Target":        notionapi.NumberProperty{Number: g.Amount.InexactFloat64()},
		"Type":          selectOption(string(g.Type)),
		"Progress":      notionapi.NumberProperty{Number: g.ProgressPercent()},
	}
	if g.Timeline != "" {
		props["Timeline"] = richText(g.Timeline)
	}
	if g.Category != "" {
		props["Category"] = selectOption(g.Category)
	}
	if deadline, ok := g.Deadline(); ok {
		props["Deadline"] = dateProperty(deadline)
	}
	return props
}

// TransactionToNotionProperties maps a transaction to the transactions database.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	description := tx.Description
	if description == "" {
		description = tx.CategoryOrDefault()
	}
	props := notionapi.Properties{
		"Description":   title(description),
		PropID:          richText(tx.ID),
		PropFingerprint: richText(Fingerprint(tx)),
		"Amount":        notionapi.NumberProperty{Number: tx.Amount.InexactFloat64()},
		"Type":          selectOption(string(tx.Type)),
		"Category":      selectOption(tx.CategoryOrDefault()),
	}
	if at, ok := tx.Time(); ok {
		props["Date"] = dateProperty(at)
	}
	if tx.Method != "" {
		props["Method"] = selectOption(tx.Method)
	}
	return props
}

// Fingerprint is a short content hash used to skip unchanged pages.
func Fingerprint(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// pageText reads a rich text property from a queried page. Pages decoded
// from the API hold pointer property values.
func pageText(page notionapi.Page, name string) string {
	var parts []notionapi.RichText
	switch p := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case notionapi.RichTextProperty:
		parts = p.RichText
	default:
		return ""
	}
	var out string
	for _, rt := range parts {
		if rt.PlainText != "" {
			out += rt.PlainText
		} else if rt.Text != nil {
			out += rt.Text.Content
		}
	}
	return out
}
