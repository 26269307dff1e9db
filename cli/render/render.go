// Package render formats verdict CLI output.
//
// Format selection:
//   - --format always wins; invalid formats are errors
//   - otherwise table on a TTY, json elsewhere
//
// --no-color affects table output only.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/verdict/runtime"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. The empty string is returned as is so
// the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes values in one format.
type Renderer struct {
	format Format
	styles Styles
	out    io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags,
// writing to stdout.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout), nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, styles: NewStyles(noColor), out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		if report, ok := data.(*runtime.RunReport); ok {
			_, err := io.WriteString(r.out, r.styles.Report(report))
			return err
		}
		return r.renderTable(reflect.ValueOf(data))
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

func (r *Renderer) renderTable(v reflect.Value) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v = indirect(v)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(w, "(no results)")
			break
		}
		first := indirect(v.Index(0))
		if first.Kind() != reflect.Struct {
			for i := range v.Len() {
				fmt.Fprintln(w, cell(v.Index(i)))
			}
			break
		}
		fmt.Fprintln(w, strings.Join(columnNames(first.Type()), "\t"))
		for i := range v.Len() {
			row := indirect(v.Index(i))
			cells := make([]string, row.NumField())
			for j := range cells {
				cells[j] = cell(row.Field(j))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	case reflect.Struct:
		names := columnNames(v.Type())
		for i, name := range names {
			fmt.Fprintf(w, "%s:\t%s\n", name, cell(v.Field(i)))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), cell(iter.Value()))
		}
	default:
		fmt.Fprintln(w, cell(v))
	}

	return w.Flush()
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// columnNames prefers json tag names over field names.
func columnNames(t reflect.Type) []string {
	names := make([]string, t.NumField())
	for i := range names {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name = strings.ToLower(f.Name)
		}
		names[i] = name
	}
	return names
}

func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() || !v.CanInterface() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return "{...}"
	}
	return fmt.Sprintf("%v", v.Interface())
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
