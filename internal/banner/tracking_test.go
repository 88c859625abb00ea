package banner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddTrackingParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no query",
			in:   "https://advertiser.example/shop",
			want: "https://advertiser.example/shop?utm_source=ZestyMarket&utm_campaign=ZestyCampaign&utm_channel=SpaceId_9",
		},
		{
			name: "existing query order kept",
			in:   "https://advertiser.example/?b=2&a=1",
			want: "https://advertiser.example/?b=2&a=1&utm_source=ZestyMarket&utm_campaign=ZestyCampaign&utm_channel=SpaceId_9",
		},
		{
			name: "fragment kept",
			in:   "https://advertiser.example/page#top",
			want: "https://advertiser.example/page?utm_source=ZestyMarket&utm_campaign=ZestyCampaign&utm_channel=SpaceId_9#top",
		},
		{
			name: "not a url",
			in:   "not a url at all",
			want: "not a url at all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddTrackingParams(tt.in, "9"))
		})
	}
}

func TestAddTrackingParams_Idempotent(t *testing.T) {
	for _, in := range []string{
		"https://advertiser.example/?utm_source=Other",
		"https://advertiser.example/?x=1&utm_campaign=Spring",
		"https://advertiser.example/?utm_channel=abc&y=%zz",
	} {
		assert.Equal(t, in, AddTrackingParams(in, "9"))
	}

	once := AddTrackingParams("https://advertiser.example/shop", "9")
	assert.Equal(t, once, AddTrackingParams(once, "9"))
}
