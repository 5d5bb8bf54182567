package opus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/jonas747/ogg"
)

// ffmpegArgs transcodes the input to 48kHz stereo Opus in an Ogg container
// with 20ms frames, as expected by Discord.
func ffmpegArgs(input string) []string {
	return []string{
		"-i", input,
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "64000",
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"-loglevel", "error",
		"pipe:1",
	}
}

// Encode takes any audio as an io.Reader, runs FFmpeg to transcode it to Opus,
// and returns an io.ReadCloser that produces length-prefixed Opus frames.
// Closing it kills FFmpeg if it is still running.
func Encode(ctx context.Context, r io.Reader) (io.ReadCloser, error) {
	ffmpeg := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs("pipe:0")...)
	ffmpeg.Stdin = r
	return start(ffmpeg)
}

// EncodeFile is like Encode but lets FFmpeg read the file directly, which
// allows it to seek in containers that need it.
func EncodeFile(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", path, err)
	}
	return start(exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(path)...))
}

func start(ffmpeg *exec.Cmd) (io.ReadCloser, error) {
	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe output of ffmpeg: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("unable to start ffmpeg process: %w", err)
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()
		defer ffmpeg.Wait()
		pw.CloseWithError(writeFrames(pw, stdout))
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg}, nil
}

// writeFrames copies Ogg/Opus packets from r to w as length-prefixed frames.
func writeFrames(w io.Writer, r io.Reader) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	// The first two packets are the OpusHead and OpusTags headers.
	skip := 2
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if skip > 0 {
			skip--
			continue
		}
		if err := WriteFrame(w, packet); err != nil {
			return err
		}
	}
}

// WriteFrame writes a single length-prefixed frame.
func WriteFrame(w io.Writer, frame []byte) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process is cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	return err
}
