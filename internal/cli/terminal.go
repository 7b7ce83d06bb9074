package cli

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/presentation"
)

// terminalBadge renders badge updates as log lines
type terminalBadge struct {
	logger logrus.FieldLogger
}

func (b terminalBadge) UpdateBadge(tabID int, score *int) {
	badge := presentation.BadgeFor(score)
	b.logger.WithFields(logrus.Fields{
		"tab":  tabID,
		"band": badge.Band,
	}).Infof("Badge: %s", badge.Text)
}

// terminalNotifier renders transient notifications as warnings
type terminalNotifier struct {
	logger logrus.FieldLogger
}

func (n terminalNotifier) Notify(tabID int, message string) {
	n.logger.WithField("tab", tabID).Warn(message)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeView prints a rendered result as text or JSON
func writeView(w io.Writer, view presentation.View, asJSON bool) error {
	if asJSON {
		return writeJSON(w, view)
	}
	return presentation.WriteText(w, view)
}
