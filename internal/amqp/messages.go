package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"pivotboard/internal/core"
)

// DataRefreshedMessage announces that a widget's underlying data changed.
// Version orders refreshes of the same widget; zero lets the consumer assign
// the next local sequence. Filters, when set, replace the widget's base query
// filters for this refresh.
type DataRefreshedMessage struct {
	WidgetID  string              `json:"widget_id"`
	Version   int64               `json:"version"`
	Filters   []core.FilterClause `json:"filters,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

var ErrMissingWidgetID = errors.New("refresh message without widget_id")

func NewDataRefreshedMessage(widgetID string, version int64, filters []core.FilterClause) *DataRefreshedMessage {
	return &DataRefreshedMessage{
		WidgetID:  widgetID,
		Version:   version,
		Filters:   filters,
		Timestamp: time.Now().UTC(),
	}
}

func (m *DataRefreshedMessage) Validate() error {
	if m.WidgetID == "" {
		return ErrMissingWidgetID
	}
	if m.Version < 0 {
		return errors.New("refresh message with negative version")
	}
	return nil
}

func (m *DataRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DataRefreshedMessageFromJSON decodes and validates a message body.
func DataRefreshedMessageFromJSON(data []byte) (*DataRefreshedMessage, error) {
	var msg DataRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
