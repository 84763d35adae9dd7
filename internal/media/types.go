package media

import (
	"math"
	"strconv"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64 // seconds
	Size       int64
	BitRate    int64
	Tags       map[string]string // keys lowercased
}

// VideoStream is one non-cover-art video stream.
type VideoStream struct {
	Index    int
	Codec    string
	Width    int
	Height   int
	BitRate  int64
	Duration float64
}

// AudioStream is one audio stream.
type AudioStream struct {
	Index      int
	Codec      string
	Channels   int
	SampleRate int
	BitRate    int64
	Duration   float64
}

// ProbeResult is the parsed output of one ffprobe call.
type ProbeResult struct {
	Format       FormatInfo
	VideoStreams []VideoStream
	AudioStreams []AudioStream
}

// HasMedia reports whether the file has any audio or video track.
func (p *ProbeResult) HasMedia() bool {
	return len(p.VideoStreams) > 0 || len(p.AudioStreams) > 0
}

// PrimaryVideo returns the first video stream, or nil.
func (p *ProbeResult) PrimaryVideo() *VideoStream {
	if len(p.VideoStreams) == 0 {
		return nil
	}
	return &p.VideoStreams[0]
}

// PrimaryAudio returns the first audio stream, or nil.
func (p *ProbeResult) PrimaryAudio() *AudioStream {
	if len(p.AudioStreams) == 0 {
		return nil
	}
	return &p.AudioStreams[0]
}

// Duration returns the container duration in seconds, falling back to the
// longest stream duration when the container reports none.
func (p *ProbeResult) Duration() float64 {
	d := p.Format.Duration
	if d > 0 && !math.IsInf(d, 0) {
		return d
	}
	for _, v := range p.VideoStreams {
		d = math.Max(d, v.Duration)
	}
	for _, a := range p.AudioStreams {
		d = math.Max(d, a.Duration)
	}
	return d
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	v := p.PrimaryVideo()
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height)
}
