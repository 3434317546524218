// Package fields turns per-tool input schemas into a flat field list and
// validates candidate records against it.
package fields

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeList   = "list"

	FormatEmail = "email"

	// PropertyOrderKey lists property names in declaration order. Decoded
	// schema objects are Go maps, which do not keep the author's order.
	PropertyOrderKey = "propertyOrder"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Field is one normalized schema entry.
type Field struct {
	Name        string `mapstructure:"name" json:"name"`
	Type        string `mapstructure:"type" json:"type"`
	Required    bool   `mapstructure:"required" json:"required"`
	Format      string `mapstructure:"format" json:"format,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
}

type propertySpec struct {
	Type        string `mapstructure:"type"`
	Format      string `mapstructure:"format"`
	Description string `mapstructure:"description"`
}

// Normalize accepts a JSON-Schema-like object (properties + required) or a
// flat list of field descriptors. Anything else yields an empty list.
func Normalize(raw any) []Field {
	switch t := raw.(type) {
	case nil:
		return []Field{}
	case []Field:
		out := make([]Field, 0, len(t))
		for _, f := range t {
			if f.Name != "" {
				out = append(out, canonical(f))
			}
		}
		return out
	case []any:
		return fromList(t)
	case []map[string]any:
		items := make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return fromList(items)
	case map[string]any:
		return fromObject(t)
	}
	return []Field{}
}

func fromList(items []any) []Field {
	out := make([]Field, 0, len(items))
	for _, item := range items {
		var f Field
		if err := mapstructure.WeakDecode(item, &f); err != nil || f.Name == "" {
			continue
		}
		out = append(out, canonical(f))
	}
	return out
}

func fromObject(obj map[string]any) []Field {
	props, ok := obj["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return []Field{}
	}
	required := map[string]bool{}
	var names []string
	_ = mapstructure.WeakDecode(obj["required"], &names)
	for _, n := range names {
		required[n] = true
	}

	keys := propertyOrder(obj[PropertyOrderKey], props)

	out := make([]Field, 0, len(keys))
	for _, name := range keys {
		spec, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		var p propertySpec
		if err := mapstructure.WeakDecode(spec, &p); err != nil {
			continue
		}
		out = append(out, canonical(Field{
			Name:        name,
			Type:        p.Type,
			Required:    required[name],
			Format:      p.Format,
			Description: p.Description,
		}))
	}
	return out
}

// propertyOrder returns the declared order first, then any remaining
// properties sorted by name so prompts stay deterministic.
func propertyOrder(declared any, props map[string]any) []string {
	var names []string
	_ = mapstructure.WeakDecode(declared, &names)

	keys := make([]string, 0, len(props))
	seen := map[string]bool{}
	for _, n := range names {
		if _, ok := props[n]; ok && !seen[n] {
			seen[n] = true
			keys = append(keys, n)
		}
	}
	rest := make([]string, 0, len(props)-len(keys))
	for k := range props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func canonical(f Field) Field {
	f.Name = strings.TrimSpace(f.Name)
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "", "string", "str", "text":
		f.Type = TypeString
	case "int", "integer":
		f.Type = TypeInt
	case "float", "number", "double":
		f.Type = TypeFloat
	case "bool", "boolean":
		f.Type = TypeBool
	case "list", "array":
		f.Type = TypeList
	default:
		f.Type = strings.ToLower(strings.TrimSpace(f.Type))
	}
	f.Format = strings.ToLower(strings.TrimSpace(f.Format))
	return f
}

// Validate coerces data against fields. Fields that fail coercion or format
// checks are dropped from the validated map and reported as errors; absent
// optional fields are omitted silently.
func Validate(data map[string]any, fields []Field) (map[string]any, []string) {
	validated := map[string]any{}
	errs := []string{}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		val, ok := data[f.Name]
		if !ok || isBlank(val) {
			if f.Required {
				errs = append(errs, fmt.Sprintf("%s is required", f.Name))
			}
			continue
		}
		v, err := coerce(val, f.Type)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s failed to coerce to %s", f.Name, f.Type))
			continue
		}
		if f.Format == FormatEmail && !emailRegex.MatchString(fmt.Sprint(v)) {
			errs = append(errs, fmt.Sprintf("%s must be a valid email", f.Name))
			continue
		}
		validated[f.Name] = v
	}
	return validated, errs
}

// RequiredComplete reports whether every required field holds a non-blank value.
func RequiredComplete(data map[string]any, fields []Field) bool {
	for _, f := range fields {
		if !f.Required || f.Name == "" {
			continue
		}
		if v, ok := data[f.Name]; !ok || isBlank(v) {
			return false
		}
	}
	return true
}

// RequiredNames returns the names of required fields in schema order.
func RequiredNames(fields []Field) []string {
	out := []string{}
	for _, f := range fields {
		if f.Required && f.Name != "" {
			out = append(out, f.Name)
		}
	}
	return out
}

// Names returns all field names in schema order.
func Names(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

// Missing lists required fields absent from data.
func Missing(data map[string]any, fields []Field) []string {
	out := []string{}
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if v, ok := data[f.Name]; !ok || isBlank(v) {
			out = append(out, f.Name)
		}
	}
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func coerce(v any, typ string) (any, error) {
	switch typ {
	case TypeString:
		return strings.TrimSpace(fmt.Sprint(v)), nil
	case TypeInt:
		return toInt(v)
	case TypeFloat:
		return toFloat(v)
	case TypeBool:
		return toBool(v)
	case TypeList:
		return toList(v)
	}
	return v, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("cannot convert %T to int", v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(t))
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toList(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, nil
	case string:
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to list", v)
}
