// Package media validates imported files and extracts their metadata.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	// Bin is the ffprobe executable; empty means "ffprobe" on PATH.
	Bin string
}

// ProbeError is a failed ffprobe run.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("ffprobe %q: %v", e.Path, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Probe runs a single ffprobe JSON call against path.
func (p FFProbe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ProbeError{Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	return ParseJSON(out)
}

// Available reports whether the ffprobe binary can be found.
func (p FFProbe) Available() bool {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// Patterns over ffprobe stderr.
var (
	reNotMedia = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`could not find codec parameters|` +
			`moov atom not found|` +
			`EBML header parsing failed|` +
			`Format .* detected only with low score`)

	reUnreadable = regexp.MustCompile(
		`(?i)Permission denied|No such file or directory|Input/output error|Operation not permitted`)
)

// IsNotMedia reports whether a probe failed because the file holds no
// recognizable media.
func IsNotMedia(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe) && reNotMedia.MatchString(pe.Stderr)
}

// IsUnreadable reports whether a probe failed because the file could not be read.
func IsUnreadable(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe) && reUnreadable.MatchString(pe.Stderr)
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	BitRate     string            `json:"bit_rate"`
	Duration    string            `json:"duration"`
	Channels    int               `json:"channels"`
	SampleRate  string            `json:"sample_rate"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
			Tags:       lowerKeys(raw.Format.Tags),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if s.Disposition["attached_pic"] == 1 {
				continue
			}
			pr.VideoStreams = append(pr.VideoStreams, VideoStream{
				Index:    s.Index,
				Codec:    s.CodecName,
				Width:    s.Width,
				Height:   s.Height,
				BitRate:  parseInt64(s.BitRate),
				Duration: parseFloat(s.Duration),
			})
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, AudioStream{
				Index:      s.Index,
				Codec:      s.CodecName,
				Channels:   s.Channels,
				SampleRate: parseInt(s.SampleRate),
				BitRate:    parseInt64(s.BitRate),
				Duration:   parseFloat(s.Duration),
			})
		}
	}
	return pr
}

func lowerKeys(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// ffprobe returns numbers as strings

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
