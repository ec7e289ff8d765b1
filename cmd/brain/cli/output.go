package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vboughner/brain-lambda/internal/engine"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	outputJSON = "json"
)

func render(w io.Writer, format string, resp *engine.Response) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	}
	return renderText(w, resp)
}

func renderText(w io.Writer, resp *engine.Response) error {
	if _, err := fmt.Fprintln(w, resp.Speech); err != nil {
		return err
	}
	for _, a := range resp.Answers {
		line := fmt.Sprintf("  %d  %s  (%s", a.WhenStored, a.Text, a.HowLongAgo)
		if a.Score > 0 {
			line += fmt.Sprintf(", score %d", a.Score)
		}
		if _, err := fmt.Fprintln(w, line+")"); err != nil {
			return err
		}
	}
	if resp.Report != nil {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp.Report); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}
