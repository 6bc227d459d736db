package model

// Source is an article origin as reported by the server. Read-only for the
// core.
type Source struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// UserFeed is a user-managed feed subscription. Mutations go through the
// feed-management collaborator, never through the core.
type UserFeed struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Category     string `json:"category"`
	Active       bool   `json:"active"`
	ArticleCount int    `json:"article_count"`
}
