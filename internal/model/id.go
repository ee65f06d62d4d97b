package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type IDType string

const (
	IDTypePlan    IDType = "plan"
	IDTypeSubtask IDType = "sub"
	IDTypeItem    IDType = "item"
)

var validIDTypes = map[IDType]bool{
	IDTypePlan:    true,
	IDTypeSubtask: true,
	IDTypeItem:    true,
}

var idRegex = regexp.MustCompile(`^(plan|sub|item)_([0-9]{10})_[0-9a-f]{8}$`)

func GenerateID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}

	timestamp := time.Now().Unix()
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	hexStr := hex.EncodeToString(randomBytes)

	return fmt.Sprintf("%s_%010d_%s", idType, timestamp, hexStr), nil
}

func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}

func ParseIDTimestamp(id string) (time.Time, error) {
	if !ValidateID(id) {
		return time.Time{}, fmt.Errorf("invalid ID format: %s", id)
	}
	match := idRegex.FindStringSubmatch(id)
	sec, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ID timestamp: %w", err)
	}
	return time.Unix(sec, 0), nil
}

var trailingDigits = regexp.MustCompile(`([0-9]+)$`)

// TrailingSequence extracts a numeric suffix from a foreign item ID
// (e.g. "PROJ-142" → 142). This is only an age proxy: it assumes the
// tracker assigns identifiers monotonically, which not every tracker
// does. An explicit created_at timestamp is preferred wherever present.
func TrailingSequence(id string) (int64, bool) {
	match := trailingDigits.FindString(id)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
