package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// jsonNull reports whether the body carried the key with an explicit null,
// which is how callers clear a nullable field.
func jsonNull(fields map[string]json.RawMessage, key string) bool {
	value, ok := fields[key]
	return ok && string(bytes.TrimSpace(value)) == "null"
}
