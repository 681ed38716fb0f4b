package library

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/franz/music-ledger/internal/util"
	"github.com/goccy/go-json"
)

// ProbeInfo represents the output from ffprobe
type ProbeInfo struct {
	Streams []ProbeStream `json:"streams"`
	Format  *ProbeFormat  `json:"format"`
}

// IntOrString can unmarshal both integers and strings from JSON
type IntOrString struct {
	Value int64
}

// UnmarshalJSON implements custom unmarshaling for IntOrString
func (i *IntOrString) UnmarshalJSON(data []byte) error {
	var intVal int64
	if err := json.Unmarshal(data, &intVal); err == nil {
		i.Value = intVal
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err != nil {
		return err
	}

	// ffprobe reports unknown values as "N/A"
	parsed, err := strconv.ParseInt(strVal, 10, 64)
	if err != nil {
		i.Value = 0
		return nil
	}

	i.Value = parsed
	return nil
}

// ProbeStream represents one stream
type ProbeStream struct {
	Index      int         `json:"index"`
	CodecName  string      `json:"codec_name"`
	CodecType  string      `json:"codec_type"`
	SampleRate IntOrString `json:"sample_rate"`
	Channels   int         `json:"channels"`
	Duration   string      `json:"duration"`
	BitRate    IntOrString `json:"bit_rate"`
}

// ProbeFormat represents container format metadata
type ProbeFormat struct {
	FormatName     string      `json:"format_name"`
	FormatLongName string      `json:"format_long_name"`
	Duration       string      `json:"duration"`
	Size           IntOrString `json:"size"`
	BitRate        IntOrString `json:"bit_rate"`
}

// AudioProperties are the attributes ffprobe contributes to an item
type AudioProperties struct {
	BitRateKbps  int64
	SampleRateHz int64
	DurationMs   int64
}

// Properties extracts audio properties from the first audio stream, falling
// back to the container for bit rate and duration.
func (p *ProbeInfo) Properties() AudioProperties {
	var props AudioProperties

	for _, s := range p.Streams {
		if s.CodecType != "audio" {
			continue
		}
		props.SampleRateHz = s.SampleRate.Value
		props.BitRateKbps = s.BitRate.Value / 1000
		props.DurationMs = parseSeconds(s.Duration)
		break
	}

	if p.Format != nil {
		if props.BitRateKbps == 0 {
			props.BitRateKbps = p.Format.BitRate.Value / 1000
		}
		if props.DurationMs == 0 {
			props.DurationMs = parseSeconds(p.Format.Duration)
		}
	}

	return props
}

func parseSeconds(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Round(f * 1000))
}

// RunFFprobe executes ffprobe and parses the JSON output
func RunFFprobe(ctx context.Context, path string) (*ProbeInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, util.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return ParseProbe(output)
}

// ParseProbe decodes ffprobe JSON output
func ParseProbe(data []byte) (*ProbeInfo, error) {
	var info ProbeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
