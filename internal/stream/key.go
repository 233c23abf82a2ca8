package stream

import (
	"fmt"
	"strings"
)

// GuestUserID keys state for sessions without a resolved identity.
const GuestUserID = "[guest]"

// Partition separates a reducer's private state from its projection.
type Partition int

const (
	Internal Partition = iota
	External
)

func (p Partition) String() string {
	switch p {
	case Internal:
		return "Internal"
	case External:
		return "External"
	default:
		return fmt.Sprintf("Partition(%d)", int(p))
	}
}

// ValidateIdentity rejects reducer ids that would make keys ambiguous.
func ValidateIdentity(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if strings.Contains(id, ":") {
		return fmt.Errorf("%w: %q contains ':'", ErrInvalidIdentity, id)
	}
	return nil
}

// BuildKey returns "{Partition}:{reducerID}:{userID}".
//
// The mapping is injective for valid reducer ids: the partition name and the
// id contain no ':', so the first two separators are always the real ones
// and the user id may contain anything.
func BuildKey(reducerID, userID string, p Partition) string {
	return p.String() + ":" + reducerID + ":" + userID
}

// ParseKey inverts BuildKey.
func ParseKey(key string) (Partition, string, string, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}

	var p Partition
	switch parts[0] {
	case "Internal":
		p = Internal
	case "External":
		p = External
	default:
		return 0, "", "", fmt.Errorf("%w: unknown partition %q", ErrMalformedKey, parts[0])
	}
	if err := ValidateIdentity(parts[1]); err != nil {
		return 0, "", "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return p, parts[1], parts[2], nil
}
