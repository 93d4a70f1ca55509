package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/phobologic/fanout/internal/model"
)

// Decode reads one complete fanout document.
func Decode(r io.Reader) ([]model.Definition, error) {
	var defs []model.Definition
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return defs, nil
}

// ReadFile decodes the document at path. source is recorded as the unit name.
func ReadFile(path, source string) (model.UnitReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.UnitReport{}, err
	}
	defer f.Close()

	defs, err := Decode(f)
	if err != nil {
		return model.UnitReport{}, fmt.Errorf("%s: %w", path, err)
	}
	return model.UnitReport{Source: source, Definitions: defs}, nil
}
