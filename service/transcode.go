package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Transcoder converts a raw uploaded file into the canonical
// distribution format and returns the path of the produced file
type Transcoder interface {
	Transcode(ctx context.Context, rawPath string) (string, error)
}

// FFmpeg shells out to the ffmpeg binary configured under ffmpeg.path
type FFmpeg struct{}

// Transcode converts the wav file at rawPath into an mp3 sibling and
// removes the raw file afterwards. The raw file is only removed once
// the mp3 exists so a failed conversion leaves something to inspect
func (FFmpeg) Transcode(ctx context.Context, rawPath string) (string, error) {
	outPath := canonicalSibling(rawPath)

	args := []string{
		"-nostdin",
		"-y",
		"-i", rawPath,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		outPath,
	}

	cmd := exec.CommandContext(ctx, viper.GetString("ffmpeg.path"), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// ffmpeg may leave a partial output file behind on error
		os.Remove(outPath)

		zap.L().Debug("FFmpeg failed",
			zap.String("input", rawPath),
			zap.String("stderr", tail(stderr.String(), 500)),
		)

		return "", fmt.Errorf("%w, %s", ErrTranscode, tail(stderr.String(), 200))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("%w, no output produced", ErrTranscode)
	}

	if err := os.Remove(rawPath); err != nil {
		zap.L().Warn("Failed to remove raw file after transcode",
			zap.String("path", rawPath),
			zap.Error(err),
		)
	}

	return outPath, nil
}

// canonicalSibling maps a raw upload path to its transcode target,
// undoing the collision suffix RawPath may have added
func canonicalSibling(rawPath string) string {
	p := strings.TrimSuffix(rawPath, rawSuffix)
	return strings.TrimSuffix(p, filepath.Ext(p)) + canonicalExt
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}
