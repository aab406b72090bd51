package swapcard

// Persisted query hashes captured from the event web app. The upstream
// resolves operations by hash, so these must match the deployed schema.
const (
	contentViewAdsHash        = "941de0c4ddd8cf381fc8a2d929aa818c2c80bf2e88f190cfb9d45984012698f7"
	peopleListConnectionsHash = "6647969f39e9e03ec7b583da22a8bb1180985387cebf5169ff96f41792cbf862"
	peopleListViewQueryHash   = "69e1ba85ea607db3bda1d9a656348cb545879099d7ee11aa3e7449d0e4f8a408"
	eventPersonDetailsHash    = "8317d1e92a83cf21b16e6ef4e1b07cbb5f7ec5c9f64b05cabef784ba7f0cd8e3"
)

func persisted(hash string) Extensions {
	return Extensions{
		PersistedQuery: PersistedQuery{
			Version:    1,
			SHA256Hash: hash,
		},
	}
}

// buildInitialOperations builds the batch the web app sends on first
// load: companion view operations plus the people list query with no
// cursor. The cursor-less list query is the only request that carries
// totalCount in its response.
func (c *Client) buildInitialOperations() []Operation {
	return []Operation{
		{
			OperationName: "ContentViewAdsQuery",
			Variables:     map[string]interface{}{"eventSlug": c.eventSlug},
			Extensions:    persisted(contentViewAdsHash),
		},
		{
			OperationName: "EventPeopleListViewConnections",
			Variables:     map[string]interface{}{"eventId": c.eventID},
			Extensions:    persisted(peopleListConnectionsHash),
		},
		{
			OperationName: "EventPeopleListViewConnectionQuery",
			Variables:     map[string]interface{}{"viewId": c.viewID},
			Extensions:    persisted(peopleListViewQueryHash),
		},
	}
}

// buildPageOperations builds the single-operation batch for a
// cursor-bearing pagination request.
func (c *Client) buildPageOperations(cursor string) []Operation {
	return []Operation{
		{
			OperationName: "EventPeopleListViewConnectionQuery",
			Variables: map[string]interface{}{
				"viewId":    c.viewID,
				"endCursor": cursor,
			},
			Extensions: persisted(peopleListViewQueryHash),
		},
	}
}

// buildDetailOperations builds the per-person detail request used by
// the enrichment path.
func (c *Client) buildDetailOperations(personID string) []Operation {
	return []Operation{
		{
			OperationName: "EventPersonDetailsQuery",
			Variables: map[string]interface{}{
				"personId": personID,
				"eventId":  c.eventID,
			},
			Extensions: persisted(eventPersonDetailsHash),
		},
	}
}
