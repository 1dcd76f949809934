package expr

import (
	"fmt"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Sort struct {
	Field     string
	Direction int
}

func Ascending(field string) Sort  { return Sort{Field: field, Direction: 1} }
func Descending(field string) Sort { return Sort{Field: field, Direction: -1} }

// SortDocument renders the sort keys in order. A field listed twice keeps its
// first position and its last direction.
func SortDocument(sorts ...Sort) (bson.D, error) {
	if len(sorts) == 0 {
		return nil, fmt.Errorf("%w: no sort keys", ErrInvalidArgument)
	}
	var d bson.D
	for _, s := range sorts {
		if s.Field == "" {
			return nil, fmt.Errorf("%w: sort field is empty", ErrInvalidArgument)
		}
		if s.Direction != 1 && s.Direction != -1 {
			return nil, fmt.Errorf("%w: sort direction for %s must be 1 or -1", ErrInvalidArgument, s.Field)
		}
		d = util.Put(d, s.Field, s.Direction)
	}
	return d, nil
}
