package entity

// User is a stored credential record. The json layout matches the user database file.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
}
