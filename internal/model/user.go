// Package model defines the data structures used throughout the application.
package model

// UserProfile is the authenticated GitHub user, fetched once per session
// refresh and replaced wholesale on refetch.
//
// Name and Company are empty when GitHub returns null for them.
type UserProfile struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatarUrl"`
	Company     string `json:"company,omitempty"`
	PublicRepos int    `json:"publicRepos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// DisplayName prefers the full name and falls back to the login.
func (u UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// Repository is the portion of a GitHub repository the dashboard uses.
// Language is empty when GitHub could not detect one.
type Repository struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Fork     bool   `json:"fork"`
}
