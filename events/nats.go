package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"necc_scraper/models"
)

// RunMessage is published after every logged scrape run
type RunMessage struct {
	Run       *models.ScrapeRunLog `json:"run"`
	Timestamp time.Time            `json:"timestamp"`
	Source    string               `json:"source"`
	Version   string               `json:"version"`
}

// NATSPublisher publishes run summaries to a NATS subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url and publishes on subject
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("necc-price-scraper"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &NATSPublisher{
		conn:    nc,
		subject: subject,
	}, nil
}

// Close drains and closes the NATS connection
func (np *NATSPublisher) Close() {
	if np.conn != nil {
		np.conn.Drain()
	}
}

// PublishRun publishes a run log
func (np *NATSPublisher) PublishRun(run *models.ScrapeRunLog) error {
	data, err := EncodeRun(run, time.Now())
	if err != nil {
		return err
	}
	return np.conn.Publish(np.subject, data)
}

// EncodeRun builds the message payload for a run
func EncodeRun(run *models.ScrapeRunLog, now time.Time) ([]byte, error) {
	return json.Marshal(RunMessage{
		Run:       run,
		Timestamp: now,
		Source:    "necc-price-scraper",
		Version:   "1.0",
	})
}
