// Package output renders CLI results as a table, JSON or YAML.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Format names accepted by NewFormatter
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// maxCell caps table cells so long review bodies keep rows on one line
const maxCell = 40

// Formatter renders data for the terminal
type Formatter interface {
	Format(data any) string
}

// NewFormatter returns a Formatter for format; anything unknown is a table
func NewFormatter(format string) Formatter {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// TableFormatter lays slices of structs out as aligned columns named after
// their JSON fields, and single structs as key/value lines
type TableFormatter struct{}

func (f *TableFormatter) Format(data any) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "No resources found.\n"
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return "No resources found.\n"
		}
		elem := indirect(v.Index(0))
		if elem.Kind() != reflect.Struct {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, cell(v.Index(i)))
			}
			break
		}

		columns := fields(elem.Type())
		headers := make([]string, len(columns))
		for i, c := range columns {
			headers[i] = strings.ToUpper(c.name)
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))

		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			vals := make([]string, len(columns))
			for j, c := range columns {
				vals[j] = cell(row.Field(c.index))
			}
			fmt.Fprintln(w, strings.Join(vals, "\t"))
		}
	case reflect.Struct:
		for _, c := range fields(v.Type()) {
			fmt.Fprintf(w, "%s:\t%s\n", c.name, cell(v.Field(c.index)))
		}
	default:
		fmt.Fprintln(w, data)
	}

	w.Flush()
	return buf.String()
}

type column struct {
	name  string
	index int
}

// fields lists exported fields by their JSON name, skipping `json:"-"`
func fields(t reflect.Type) []column {
	var out []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out = append(out, column{name: name, index: i})
	}
	return out
}

func indirect(v reflect.Value) reflect.Value {
	for (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() || ((v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil()) {
		return "-"
	}

	var s string
	switch val := v.Interface().(type) {
	case time.Time:
		if val.IsZero() {
			return "-"
		}
		s = val.Format(time.RFC3339)
	default:
		switch v.Kind() {
		case reflect.Slice, reflect.Map, reflect.Struct:
			if v.Kind() != reflect.Struct && v.Len() == 0 {
				return "-"
			}
			b, err := json.Marshal(val)
			if err != nil {
				s = fmt.Sprintf("%v", val)
			} else {
				s = string(b)
			}
		default:
			s = fmt.Sprintf("%v", val)
		}
	}

	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "-"
	}
	if r := []rune(s); len(r) > maxCell {
		s = string(r[:maxCell-3]) + "..."
	}
	return s
}

// JSONFormatter formats data as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

// YAMLFormatter formats data as YAML. Values go through JSON first so the
// keys match the JSON field names.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	b, err := yaml.Marshal(generic)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}
