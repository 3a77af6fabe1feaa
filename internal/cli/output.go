package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// readInput returns the JSON argument, or the contents of file when set.
// A file of "-" reads stdin.
func readInput(arg, file string, stdin io.Reader) ([]byte, error) {
	switch {
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	case arg != "":
		return []byte(arg), nil
	default:
		return nil, fmt.Errorf("no JSON given: pass it as an argument or with --file")
	}
}

// decodeFields decodes a JSON object keeping numbers as json.Number.
func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("parse JSON: expected an object")
	}
	return fields, nil
}
