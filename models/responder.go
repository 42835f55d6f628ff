package models

import "time"

// Responder holds the structure for the responders collection in mongo.
// Accounts are provisioned by the dashboard; this service only reads them.
type Responder struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	District  string    `json:"district,omitempty" bson:"district,omitempty"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
