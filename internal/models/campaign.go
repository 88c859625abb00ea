package models

// Campaign is an approved piece of creative content bid into an auction for a space.
// URI points to the campaign's banner descriptor.
type Campaign struct {
	ID  string `json:"id"`  // Indexer id of the buyer campaign.
	URI string `json:"uri"` // Content locator of the banner descriptor (ipfs://, ar://, https://, or a bare hash).
}

// Auction is a time-boxed contract window for a space. Start and End are unix
// seconds and both bounds are inclusive.
type Auction struct {
	ID        string
	Start     int64
	End       int64
	Cancelled bool
	// Campaigns are the campaign objects bid into the auction.
	Campaigns []Campaign
	// Approved is parallel to CampaignIDs (or to Campaigns when CampaignIDs is empty).
	Approved []bool
	// CampaignIDs lists campaign ids in bid order.
	CampaignIDs []string
}

// ActiveAt reports whether the auction window contains now and the auction is not cancelled.
func (a Auction) ActiveAt(now int64) bool {
	return !a.Cancelled && a.Start <= now && now <= a.End
}

// LatestApproved returns the last campaign whose approval flag is true.
// When the id list is present the approved id is looked up among the campaign
// objects; otherwise the campaign at the same position is used.
func (a Auction) LatestApproved() (Campaign, bool) {
	for i := len(a.Approved) - 1; i >= 0; i-- {
		if !a.Approved[i] {
			continue
		}
		if c, ok := a.campaignAt(i); ok {
			return c, true
		}
	}
	return Campaign{}, false
}

func (a Auction) campaignAt(i int) (Campaign, bool) {
	if len(a.CampaignIDs) > 0 {
		if i >= len(a.CampaignIDs) {
			return Campaign{}, false
		}
		id := a.CampaignIDs[i]
		for _, c := range a.Campaigns {
			if c.ID == id {
				return c, true
			}
		}
		return Campaign{}, false
	}
	if i < len(a.Campaigns) {
		return a.Campaigns[i], true
	}
	return Campaign{}, false
}
