package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/disaster-intake-api/models"
)

// Quick utility to generate a responder document with a bcrypt password hash
// Usage: go run scripts/hash_responder_password.go <email> <password> [name] [district]
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run scripts/hash_responder_password.go <email> <password> [name] [district]")
		fmt.Println("Example: go run scripts/hash_responder_password.go desk@example.org s3cret \"Duty Desk\" Dhaka")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	password := os.Args[2]

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	r := models.Responder{
		ID:        uuid.NewString(),
		Email:     email,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if len(os.Args) > 3 {
		r.Name = os.Args[3]
	}
	if len(os.Args) > 4 {
		r.District = os.Args[4]
	}

	fmt.Printf("Bcrypt Hash: %s\n", string(hashedPassword))
	fmt.Printf("\nTo add the responder in MongoDB, run:\n")
	fmt.Printf("db.responders.insertOne({\n")
	fmt.Printf("  _id: %q,\n", r.ID)
	fmt.Printf("  name: %q,\n", r.Name)
	fmt.Printf("  email: %q,\n", r.Email)
	fmt.Printf("  password: %q,\n", string(hashedPassword))
	fmt.Printf("  district: %q,\n", r.District)
	fmt.Printf("  active: %t,\n", r.Active)
	fmt.Printf("  created_at: new Date(%q)\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Printf("})\n")
}
