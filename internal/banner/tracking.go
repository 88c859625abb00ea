package banner

import (
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
)

const (
	utmSource   = "ZestyMarket"
	utmCampaign = "ZestyCampaign"
)

var utmMarkers = []string{"utm_source=", "utm_campaign=", "utm_channel="}

// AddTrackingParams appends source, campaign and channel attribution parameters to a
// click URL. A URL already carrying any of them, or one that does not look like a
// URL, is returned byte-identical.
func AddTrackingParams(rawURL, space string) string {
	for _, m := range utmMarkers {
		if strings.Contains(rawURL, m) {
			return rawURL
		}
	}
	if !govalidator.IsURL(rawURL) {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// appended by hand so existing parameter order is preserved
	params := "utm_source=" + utmSource +
		"&utm_campaign=" + utmCampaign +
		"&utm_channel=" + url.QueryEscape("SpaceId_"+space)
	if u.RawQuery == "" {
		u.RawQuery = params
	} else {
		u.RawQuery += "&" + params
	}
	return u.String()
}
