package l1detections

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/you112ef/Sky-CASA/internal/casa"
)

// Format is a detection file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a name ("json", "csv") to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown detection format %q (want json or csv)", name)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Load opens and decodes a detection file. Any file that cannot be opened
// as a regular file (missing, unreadable, a directory) is reported as
// InputNotFound; the message carries the underlying cause.
func Load(path string, format Format) (*Input, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, casa.NewError(casa.StageIngest, casa.KindInputNotFound,
				fmt.Errorf("detection file not found: %s", path))
		}
		return nil, casa.NewError(casa.StageIngest, casa.KindInputNotFound,
			fmt.Errorf("cannot open detection file: %w", err))
	}
	defer f.Close()

	if st, err := f.Stat(); err != nil {
		return nil, casa.NewError(casa.StageIngest, casa.KindInputNotFound,
			fmt.Errorf("cannot stat detection file: %w", err))
	} else if st.IsDir() {
		return nil, casa.NewError(casa.StageIngest, casa.KindInputNotFound,
			fmt.Errorf("detection path is a directory: %s", path))
	}

	in, err := Decode(f, format)
	if err != nil {
		return nil, err
	}
	if in.Source == "" {
		in.Source = filepath.Base(path)
	}
	return in, nil
}

// Decode reads an Input from r. JSON documents carry the full Input; CSV
// files carry only detections (header: frame,x,y,area) and leave
// calibration unset.
func Decode(r io.Reader, format Format) (*Input, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(r)
	case FormatCSV:
		return decodeCSV(r)
	default:
		return nil, casa.Errorf(casa.StageIngest, casa.KindMalformedInput, "unsupported format %q", format)
	}
}

func decodeJSON(r io.Reader) (*Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, casa.NewError(casa.StageIngest, casa.KindMalformedInput,
			fmt.Errorf("failed to parse detection JSON: %w", err))
	}
	return &in, nil
}

var csvColumns = []string{"frame", "x", "y", "area"}

func decodeCSV(r io.Reader) (*Input, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvColumns)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return &Input{}, nil
	}
	if err != nil {
		return nil, casa.NewError(casa.StageIngest, casa.KindMalformedInput,
			fmt.Errorf("failed to read CSV header: %w", err))
	}
	for i, col := range csvColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
				"CSV column %d is %q, want %q", i+1, header[i], col)
		}
	}

	var detections []Detection
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, casa.NewError(casa.StageIngest, casa.KindMalformedInput,
				fmt.Errorf("CSV line %d: %w", line, err))
		}
		d, err := parseRecord(rec)
		if err != nil {
			return nil, casa.NewError(casa.StageIngest, casa.KindMalformedInput,
				fmt.Errorf("CSV line %d: %w", line, err))
		}
		detections = append(detections, d)
	}

	frames, err := GroupByFrame(detections)
	if err != nil {
		return nil, err
	}
	return &Input{Frames: frames}, nil
}

func parseRecord(rec []string) (Detection, error) {
	frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return Detection{}, fmt.Errorf("failed to parse frame: %w", err)
	}
	var vals [3]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return Detection{}, fmt.Errorf("failed to parse %s: %w", csvColumns[i+1], err)
		}
	}
	return Detection{FrameIndex: frame, X: vals[0], Y: vals[1], Area: vals[2]}, nil
}
