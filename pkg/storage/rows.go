package storage

import (
	"fmt"
	"strconv"

	"github.com/rubiojr/craftsearch/pkg/core"
)

// Columns is the projection every block query selects, in the order MapRow
// assigns them.
var Columns = []string{"id", "content", "type", "entityType", "documentId"}

// MalformedRowError is returned by MapRow when a row does not have one value per
// projected column.
type MalformedRowError struct {
	SpaceID string
	Want    int
	Got     int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row from space %s: expected %d columns, got %d", e.SpaceID, e.Want, e.Got)
}

// MapRow converts one positional result row into a Block and tags it with spaceID.
// Values may be strings, byte slices, integers, floats or nil (mapped to "").
func MapRow(values []any, spaceID string) (core.Block, error) {
	if len(values) != len(Columns) {
		return core.Block{}, &MalformedRowError{SpaceID: spaceID, Want: len(Columns), Got: len(values)}
	}
	return core.Block{
		ID:         scalarString(values[0]),
		Content:    scalarString(values[1]),
		Type:       scalarString(values[2]),
		EntityType: scalarString(values[3]),
		DocumentID: scalarString(values[4]),
		SpaceID:    spaceID,
	}, nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
