package chattest

import (
	"skillswap/internal/models"
)

// Users known to every fake server. Tokens are opaque bearer strings.
var Users = []User{
	{Participant: models.Participant{ID: "u1", Name: "Alex Rivera"}, Email: "alex@demo.com", Token: "token-alex"},
	{Participant: models.Participant{ID: "u2", Name: "Maya Chen"}, Email: "maya@demo.com", Token: "token-maya"},
	{Participant: models.Participant{ID: "u3", Name: "Jordan Lee"}, Email: "jordan@demo.com", Token: "token-jordan"},
}

// Conversations seeded into every fake server.
var Conversations = []Thread{
	{ID: "c12", Members: [2]string{"u1", "u2"}},
	{ID: "c13", Members: [2]string{"u1", "u3"}},
}

type User struct {
	models.Participant
	Email string
	Token string
}

// Thread is a conversation as the server stores it, before it is projected
// onto one member's point of view.
type Thread struct {
	ID      string
	Members [2]string
}

func (t Thread) other(userID string) string {
	if t.Members[0] == userID {
		return t.Members[1]
	}
	return t.Members[0]
}

func (t Thread) has(userID string) bool {
	return t.Members[0] == userID || t.Members[1] == userID
}

// Session returns the session of a fixture user.
func Session(userID string) models.Session {
	for _, u := range Users {
		if u.ID == userID {
			return models.Session{UserID: u.ID, Name: u.Name, Token: u.Token}
		}
	}
	return models.Session{}
}
