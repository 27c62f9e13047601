package verify

import (
	"fmt"
	"regexp"
)

// checkSchema validates a mapping output against ctx.Schema: required
// fields, value types, numeric min/max, and string regex patterns. Every
// violation is one issue; any violation subtracts 0.15 from confidence
// (once, per the layer, not per violation), mirroring "On failure subtract
// 0.15".
func checkSchema(output map[string]interface{}, schema *Schema) (LayerResult, []string) {
	var issues []string

	for _, field := range schema.Fields {
		value, present := output[field.Name]
		if !present {
			if field.Required {
				issues = append(issues, fmt.Sprintf("schema: required field %q missing", field.Name))
			}
			continue
		}
		if msg, ok := checkFieldType(field, value); !ok {
			issues = append(issues, msg)
			continue
		}
		if msg, ok := checkFieldRange(field, value); !ok {
			issues = append(issues, msg)
		}
		if msg, ok := checkFieldPattern(field, value); !ok {
			issues = append(issues, msg)
		}
	}

	passed := len(issues) == 0
	delta := 0.0
	if !passed {
		delta = -0.15
	}

	return LayerResult{
		Layer:   "schema",
		Ran:     true,
		Passed:  passed,
		Delta:   delta,
		Details: map[string]interface{}{"violations": len(issues)},
	}, issues
}

func checkFieldType(field FieldSpec, value interface{}) (string, bool) {
	ok := false
	switch field.Type {
	case FieldTypeString:
		_, ok = value.(string)
	case FieldTypeInt:
		switch value.(type) {
		case int, int32, int64:
			ok = true
		}
	case FieldTypeFloat:
		switch value.(type) {
		case float32, float64:
			ok = true
		}
	case FieldTypeBool:
		_, ok = value.(bool)
	case FieldTypeList:
		_, ok = value.([]interface{})
	case FieldTypeDict:
		_, ok = value.(map[string]interface{})
	default:
		ok = true
	}
	if !ok {
		return fmt.Sprintf("schema: field %q expected type %s", field.Name, field.Type), false
	}
	return "", true
}

func checkFieldRange(field FieldSpec, value interface{}) (string, bool) {
	if field.Min == nil && field.Max == nil {
		return "", true
	}
	num, ok := asFloat(value)
	if !ok {
		return "", true
	}
	if field.Min != nil && num < *field.Min {
		return fmt.Sprintf("schema: field %q below minimum %v", field.Name, *field.Min), false
	}
	if field.Max != nil && num > *field.Max {
		return fmt.Sprintf("schema: field %q above maximum %v", field.Name, *field.Max), false
	}
	return "", true
}

func checkFieldPattern(field FieldSpec, value interface{}) (string, bool) {
	if field.Pattern == "" || field.Type != FieldTypeString {
		return "", true
	}
	s, ok := value.(string)
	if !ok {
		return "", true
	}
	matched, err := regexp.MatchString(field.Pattern, s)
	if err != nil || !matched {
		return fmt.Sprintf("schema: field %q does not match pattern %q", field.Name, field.Pattern), false
	}
	return "", true
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
