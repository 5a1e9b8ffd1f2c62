package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/sim"
)

type ExportData struct {
	Name       string               `json:"name"`
	Material   string               `json:"material,omitempty"`
	Integrator string               `json:"integrator,omitempty"`
	Dt         float64              `json:"dt,omitempty"`
	Steps      int                  `json:"steps"`
	Times      []float64            `json:"times"`
	Frames     []dynamo.Frame       `json:"frames"`
	Metrics    map[string]float64   `json:"metrics"`
	Series     map[string][]float64 `json:"series,omitempty"`
}

func NewExportData(s *sim.Simulation, result *sim.Result) ExportData {
	data := ExportData{
		Name:    result.Name,
		Steps:   result.StepsTaken,
		Times:   result.Times,
		Frames:  result.Payload.Frames,
		Metrics: result.Metrics,
		Series:  result.Series,
	}
	if s != nil {
		it := s.Integrator()
		data.Material = it.Material().Name()
		data.Integrator = it.Name()
		data.Dt = it.DT()
	}
	return data
}

// WriteJSON writes v as indented JSON. Frames, payloads and ExportData
// all go through it.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return WriteJSON(os.Stdout, data)
}
