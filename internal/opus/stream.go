package opus

import (
	"errors"
	"io"
	"time"
)

var ErrVoiceConnClosed = errors.New("voice connection send timeout")

// SendTimeout bounds how long a single frame may wait for the voice connection.
const SendTimeout = time.Minute

// StreamToVoice reads Opus frames from source and sends them to send,
// usually a voice connection's OpusSend channel. It blocks until all frames
// are sent, stop is closed, or an error occurs. Returns nil on clean EOF
// and when stopped.
func StreamToVoice(source *FrameReader, send chan<- []byte, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		frame, err := source.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		timer := time.NewTimer(SendTimeout)
		select {
		case send <- frame:
			timer.Stop()
		case <-stop:
			timer.Stop()
			return nil
		case <-timer.C:
			return ErrVoiceConnClosed
		}
	}
}
