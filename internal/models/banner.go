package models

import (
	"fmt"
	"strings"
)

// Format is the aspect-ratio class of a banner.
type Format string

const (
	FormatTall   Format = "tall"   // 0.75:1
	FormatWide   Format = "wide"   // 4:1
	FormatSquare Format = "square" // 1:1
)

// Formats lists every supported format in display order.
var Formats = []Format{FormatTall, FormatWide, FormatSquare}

// Style is the visual theme of a default banner.
type Style string

const (
	StyleStandard    Style = "standard"
	StyleMinimal     Style = "minimal"
	StyleTransparent Style = "transparent"
)

// Styles lists every supported style in display order.
var Styles = []Style{StyleStandard, StyleMinimal, StyleTransparent}

// DefaultFormat and DefaultStyle select the global fallback banner.
const (
	DefaultFormat = FormatSquare
	DefaultStyle  = StyleStandard
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is a supported style.
func (s Style) Valid() bool {
	for _, v := range Styles {
		if s == v {
			return true
		}
	}
	return false
}

// ParseFormat matches a request value case-insensitively.
func ParseFormat(v string) (Format, error) {
	f := Format(strings.ToLower(v))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, v)
	}
	return f, nil
}

// ParseStyle matches a request value case-insensitively.
func ParseStyle(v string) (Style, error) {
	s := Style(strings.ToLower(v))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStyle, v)
	}
	return s, nil
}

// BannerDescriptor is the JSON payload describing a campaign's image and click-through URL.
type BannerDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"` // Image locator, normalized before fetching.
	URL         string `json:"url"`   // Click-through URL.
}

// Banner is a resolved descriptor together with where it came from.
type Banner struct {
	URI        string           `json:"uri,omitempty"` // Locator the descriptor was fetched from; empty for defaults.
	CampaignID string           `json:"campaign_id,omitempty"`
	Descriptor BannerDescriptor `json:"data"`
	// Default is true when the built-in descriptor was substituted, either because no
	// campaign is active or because the campaign's descriptor could not be fetched.
	Default bool `json:"default"`
}
