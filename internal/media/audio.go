package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".mp4a": true,
	".m4a":  true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".flac": true,
	".aac":  true,
	".wma":  true,
	".amr":  true,
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".3gp":  true,
}

// AudioProcessor shells out to ffmpeg and ffprobe to normalize media and
// measure its duration.
type AudioProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewAudioProcessor uses the ffmpeg and ffprobe binaries on PATH.
func NewAudioProcessor() *AudioProcessor {
	return &AudioProcessor{ffmpegPath: "ffmpeg", ffprobePath: "ffprobe"}
}

// PrepareAudio returns a path to an audio file suitable for transcription.
// Audio inputs pass through unchanged; video inputs have their audio track
// extracted to a 16 kHz mono WAV next to the source. The second return
// value reports whether a new file was created that the caller must remove.
func (p *AudioProcessor) PrepareAudio(ctx context.Context, mediaPath string) (string, bool, error) {
	ext := strings.ToLower(filepath.Ext(mediaPath))
	if audioExtensions[ext] {
		return mediaPath, false, nil
	}
	if !videoExtensions[ext] && ext != "" {
		// Messenger occasionally omits extensions on voice clips. Treat
		// unknown extensions as audio and let the decoder complain.
		return mediaPath, false, nil
	}

	audioPath := strings.TrimSuffix(mediaPath, ext) + ".wav"
	args := []string{
		"-y", "-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(audioPath)
		return "", false, fmt.Errorf("ffmpeg audio extraction failed: %w: %s", err, truncate(stderr.String(), 512))
	}

	return audioPath, true, nil
}

// Duration probes the media duration via ffprobe.
func (p *AudioProcessor) Duration(ctx context.Context, mediaPath string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 512))
	}

	raw := strings.TrimSpace(stdout.String())
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparseable duration %q: %w", raw, err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
