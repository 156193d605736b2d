// internal/rules/coercion.go
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Type coercion for rule testing.
 *
 * Metadata values and condition values are coerced to the schema type of the
 * condition's field before comparison, so "25" in a payload matches 25 in a
 * numeric condition.
 *
 * Type modes:
 *   - number:  strict. Numeric strings parse to float64, booleans are rejected.
 *   - string:  lenient. Every scalar renders to its string form.
 *   - boolean: strict. Only JSON booleans; "true" and 1 are rejected.
 *   - any:     original type preserved; Compare handles numeric mixing.
 *
 * Null is not a coercion failure. It is reported through IsNull so the
 * evaluator can treat it as a missing field.
 */

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce attempts to convert value to the expected field type.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, fieldType types.FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch fieldType {
	case types.FieldTypeNumber:
		return coerceNumber(value)
	case types.FieldTypeString:
		return coerceString(value)
	case types.FieldTypeBoolean:
		return coerceBoolean(value)
	case types.FieldTypeAny:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, fmt.Errorf("%w: unknown field type %q", types.ErrCoercionFailed, fieldType)
	}
}

func coerceNumber(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case float64:
		return CoercionResult{Value: v}, nil
	case int:
		return CoercionResult{Value: float64(v)}, nil
	case int64:
		return CoercionResult{Value: float64(v)}, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(v, 64)
		// NaN and Inf parse but never appear in JSON metadata.
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

func coerceString(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case int:
		return CoercionResult{Value: strconv.Itoa(v)}, nil
	case int64:
		return CoercionResult{Value: strconv.FormatInt(v, 10)}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case map[string]any, []any:
		// Objects and arrays have no text form a condition could equal.
		return CoercionResult{}, types.ErrCoercionFailed
	default:
		return CoercionResult{Value: fmt.Sprintf("%v", v)}, nil
	}
}

func coerceBoolean(value any) (CoercionResult, error) {
	if v, ok := value.(bool); ok {
		return CoercionResult{Value: v}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}
