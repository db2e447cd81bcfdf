// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/hex"

	applog "lightshow/internal/log"
)

// LoggingTransport implements the Transport interface by logging frames.
// It backs the "log" transport used for dry runs without a controller.
type LoggingTransport struct {
	log    *applog.Logger
	frames uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: applog.New("log-transport")}
	lt.log.Infof("Using LoggingTransport, frames are not sent anywhere")
	return lt
}

// Send logs the frame. Logging transport never fails to "send".
func (lt *LoggingTransport) Send(frame []byte) error {
	lt.frames++
	lt.log.Debugf("frame %d (%d bytes): %s", lt.frames, len(frame), hex.EncodeToString(frame))
	return nil
}

// Frames returns the number of frames logged so far.
func (lt *LoggingTransport) Frames() uint64 {
	return lt.frames
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Infof("Close called after %d frames", lt.frames)
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
