package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data as a JSON envelope, or text as a single line.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}
