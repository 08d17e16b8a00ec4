package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a new store-assigned identity as a 24 character hex string.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ParseID validates a record or blob id and returns its canonical form.
func ParseID(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("id is required")
	}
	oid, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", value, err)
	}
	return oid.Hex(), nil
}

// IsValidID reports whether raw parses as an id.
func IsValidID(raw string) bool {
	_, err := ParseID(raw)
	return err == nil
}
