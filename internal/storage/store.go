package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	FrameSize  int                `json:"frame_size"`
	Frames     int                `json:"frames"`
	Steps      int                `json:"steps"`
	Material   string             `json:"material"`
	Integrator string             `json:"integrator"`
	Indices    []int              `json:"indices"`
	Metrics    map[string]float64 `json:"metrics"`
	Config     *config.Config     `json:"config,omitempty"`
}

// Save writes the run under <base>/<name>_<unix>/ as metadata.json and
// frames.csv, one row per frame: frameno, time, x0, y0, x1, y1, ...
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	now := s.now()
	runID := fmt.Sprintf("%s_%d", result.Name, now.Unix())
	runDir := filepath.Join(s.baseDir, runID)
	for n := 1; ; n++ {
		_, err := os.Stat(runDir)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		runID = fmt.Sprintf("%s_%d_%d", result.Name, now.Unix(), n)
		runDir = filepath.Join(s.baseDir, runID)
	}

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Name:       result.Name,
		Timestamp:  now,
		Seed:       cfg.Seed,
		Dt:         cfg.Integrator.Dt,
		FrameSize:  cfg.Frames.Size,
		Frames:     len(result.Payload.Frames),
		Steps:      result.StepsTaken,
		Material:   cfg.Material.Type,
		Integrator: cfg.Integrator.Type,
		Indices:    result.Payload.Indices(),
		Metrics:    result.Metrics,
		Config:     cfg,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)

	frames := result.Payload.Frames
	if len(frames) == 0 {
		w.Flush()
		return runID, w.Error()
	}

	header := []string{"frameno", "time"}
	for i := 0; i < len(frames[0].Vertices)/2; i++ {
		header = append(header, fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, f := range frames {
		t := 0.0
		if i < len(result.Times) {
			t = result.Times[i]
		}
		row := []string{strconv.Itoa(f.FrameNo), strconv.FormatFloat(t, 'f', 6, 64)}
		for _, val := range f.Vertices {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	return runID, w.Error()
}

// List returns the metadata of every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %q: %w", runID, dynamo.ErrNotFound)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadFrames reads frames.csv back into a payload. Triangle indices come
// from the metadata and are attached to frame 0.
func (s *Store) LoadFrames(runID string) (dynamo.Payload, []float64, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return dynamo.Payload{}, nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return dynamo.Payload{}, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return dynamo.Payload{}, nil, err
	}

	payload := dynamo.Payload{Frames: []dynamo.Frame{}}
	times := []float64{}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 2 {
			continue
		}

		frameNo, err := strconv.Atoi(record[0])
		if err != nil {
			return dynamo.Payload{}, nil, fmt.Errorf("%s row %d: %w", framesFile, i, err)
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return dynamo.Payload{}, nil, fmt.Errorf("%s row %d: %w", framesFile, i, err)
		}

		vertices := make([]float64, 0, len(record)-2)
		for _, field := range record[2:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return dynamo.Payload{}, nil, fmt.Errorf("%s row %d: %w", framesFile, i, err)
			}
			vertices = append(vertices, val)
		}

		f := dynamo.Frame{FrameNo: frameNo, Vertices: vertices}
		if frameNo == 0 {
			f.Indices = meta.Indices
		}
		payload.Frames = append(payload.Frames, f)
		times = append(times, t)
	}

	return payload, times, nil
}
