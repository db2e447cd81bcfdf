// SPDX-License-Identifier: MIT
package simulator

import (
	"context"
	"strings"

	"lightshow/internal/fixture"
)

// LogFrames logs the fixture colors every time the model changes, until ctx
// is done. It is the display of a headless simulator.
func LogFrames(ctx context.Context, m *Model) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.Changed():
			st := m.Stats()
			m.log.Infof("Frame %d: %s", st.Frames, formatColors(m.Snapshot()))
		}
	}
}

func formatColors(leds []fixture.Color) string {
	var sb strings.Builder
	for i, c := range leds {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.String())
	}
	return sb.String()
}
