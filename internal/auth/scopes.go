package auth

// Scopes checked by the activity routes.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
)
