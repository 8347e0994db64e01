package notion

import "github.com/jomei/notionapi"

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// Title builds a title property.
func Title(s string) notionapi.Property {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: text(s)}
}

// RichText builds a rich-text property.
func RichText(s string) notionapi.Property {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(s)}
}

// Number builds a number property.
func Number(n float64) notionapi.Property {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: n}
}

// Email builds an email property.
func Email(s string) notionapi.Property {
	return notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: s}
}

// Phone builds a phone number property.
func Phone(s string) notionapi.Property {
	return notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: s}
}

// URL builds a URL property.
func URL(s string) notionapi.Property {
	return notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: s}
}

// Select builds a select property.
func Select(s string) notionapi.Property {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: s}}
}
