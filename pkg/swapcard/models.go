package swapcard

// Attendee is one participant in the event's people directory.
// JSON field names match the upstream schema so records round-trip
// through the export artifacts unchanged.
type Attendee struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	JobTitle     string `json:"jobTitle"`
	Organization string `json:"organization"`
	PhotoURL     string `json:"photoUrl"`
	Biography    string `json:"biography"`
	UserID       string `json:"userId"`
}

// AttendeeDetails holds the extra fields exposed by the per-person
// detail operation, merged into an attendee during enrichment.
type AttendeeDetails struct {
	Email      string `json:"email"`
	WebsiteURL string `json:"websiteUrl"`
	City       string `json:"city"`
	Country    string `json:"country"`
	Industry   string `json:"industry"`
}

// EnrichedAttendee is a directory record merged with its detail fields.
type EnrichedAttendee struct {
	Attendee
	AttendeeDetails
}

// PageInfo carries the cursor-pagination state returned with each page.
// EndCursor is opaque; it is passed back verbatim on the next request.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Page is one decoded page of the people listing.
// TotalCount is zero when the upstream omitted it (it is usually only
// present on the first, cursor-less request).
type Page struct {
	Records    []Attendee
	EndCursor  string
	HasMore    bool
	TotalCount int
}

// Operation is one named GraphQL operation in a batched request.
type Operation struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Extensions    Extensions             `json:"extensions"`
}

// Extensions carries the persisted-query hash the upstream resolves
// operations by. No query text is ever sent.
type Extensions struct {
	PersistedQuery PersistedQuery `json:"persistedQuery"`
}

type PersistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

// GraphQLError is one error entry in a per-operation result.
type GraphQLError struct {
	Message string `json:"message"`
}

// OperationResult is one entry in the JSON array the batch endpoint
// returns, positionally matching the request's operations.
type OperationResult struct {
	Data   *OperationData `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// OperationData is the decoded "data" envelope. Only the shapes the
// collector and enricher consume are modeled; anything else decodes
// to nil and is ignored.
type OperationData struct {
	View   *ViewData   `json:"view"`
	Person *PersonData `json:"eventPerson"`
}

// ViewData holds the people connection for a list-view operation.
type ViewData struct {
	People *PeopleConnection `json:"people"`
}

// PeopleConnection is the cursor-paginated people listing.
type PeopleConnection struct {
	TotalCount int        `json:"totalCount"`
	Nodes      []Attendee `json:"nodes"`
	PageInfo   PageInfo   `json:"pageInfo"`
}

// PersonData is the payload of the per-person detail operation.
type PersonData struct {
	Attendee
	AttendeeDetails
}
