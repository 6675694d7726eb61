package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lherron/discuss/internal/cli/appctx"
	"github.com/lherron/discuss/internal/render"
)

// readBody returns comment text from -m, a file argument, or stdin ("-").
func readBody(message string, source string, stdin io.Reader) (string, error) {
	if message != "" {
		return message, nil
	}
	switch source {
	case "":
		return "", fmt.Errorf("comment text required (use -m, a file path, or '-' for stdin)")
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", source, err)
		}
		return string(data), nil
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// renderValue writes v in a structured format. It reports false for table
// output so the caller can print its own summary.
func renderValue(app *appctx.App, w io.Writer, v any) (bool, error) {
	r := app.Renderer(w)
	switch app.Format {
	case render.FormatJSON, render.FormatNDJSON:
		return true, r.RenderJSON(v)
	case render.FormatYAML:
		return true, r.RenderYAML(v)
	}
	return false, nil
}
