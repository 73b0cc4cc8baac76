package domain

// Identity is the signed-in principal as seen by the store.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
