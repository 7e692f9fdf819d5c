package Slack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"Convoy/Models"
	"Convoy/Reconcile"

	"gorm.io/gorm"
)

// SlackClient holds the Slack bot token and base URL
type SlackClient struct {
	Token   string
	Channel string
	BaseURL string
}

// SlackMessage represents a message payload
type SlackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Parse   string `json:"parse,omitempty"`
}

// SlackResponse represents the API response
type SlackResponse struct {
	OK      bool   `json:"ok"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// NewSlackClient builds a client from SLACK_BOT_TOKEN and SLACK_CHANNEL.
// Returns nil when the token is not configured; callers treat a nil
// client as "Slack disabled".
func NewSlackClient() *SlackClient {
	token := os.Getenv("SLACK_BOT_TOKEN")
	if token == "" {
		log.Println("SLACK_BOT_TOKEN not set, Slack reporting disabled")
		return nil
	}
	return &SlackClient{
		Token:   token,
		Channel: os.Getenv("SLACK_CHANNEL"),
		BaseURL: "https://slack.com/api",
	}
}

// SendMessage sends a message to the configured Slack channel
func (s *SlackClient) SendMessage(message string) (*SlackResponse, error) {
	payload := SlackMessage{
		Channel: s.Channel,
		Text:    message,
		Parse:   "full",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling JSON: %v", err)
	}

	url := fmt.Sprintf("%s/chat.postMessage", s.BaseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if !slackResp.OK {
		return &slackResp, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}

// NewObserver reports edit conflicts to Slack so operations can follow up
// on lost manual edits.
func (s *SlackClient) NewObserver() Reconcile.Observer {
	return Reconcile.ObserverFunc(func(e Reconcile.Event) {
		if s == nil || e.Kind != Reconcile.EventConflict {
			return
		}
		message := fmt.Sprintf(":warning: Concurrent edit conflict on fuel record %d (truck %s). Source: %s",
			e.RecordID, e.TruckNo, e.Source)
		go func() {
			if _, err := s.SendMessage(message); err != nil {
				log.Printf("Error sending conflict alert to Slack: %v", err)
			}
		}()
	})
}

// SendPendingReport posts a summary of unmatched dispenses and LPO entries.
// Called by the daily cron; quiet when there is nothing pending.
func (s *SlackClient) SendPendingReport(db *gorm.DB) error {
	if s == nil {
		return nil
	}

	var pendingDispenses []Models.YardFuelDispense
	if err := db.Where("status = ?", Models.DispensePending).Find(&pendingDispenses).Error; err != nil {
		return err
	}

	var pendingEntries []Models.LPOEntry
	if err := db.Where("pending = ? AND is_cancelled = ?", true, false).Find(&pendingEntries).Error; err != nil {
		return err
	}

	if len(pendingDispenses) == 0 && len(pendingEntries) == 0 {
		return nil
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("*Pending fuel backlog — %s*\n",
		time.Now().Format("January 2, 2006")))

	if len(pendingDispenses) > 0 {
		message.WriteString(fmt.Sprintf("\n*%d yard dispenses awaiting a journey:*\n", len(pendingDispenses)))
		for _, d := range pendingDispenses {
			message.WriteString(fmt.Sprintf("• Truck %s — %.0f lts at %s (%s)\n",
				d.TruckNo, d.Liters, d.Yard, d.CreatedAt.Format("Jan 2")))
		}
	}

	if len(pendingEntries) > 0 {
		message.WriteString(fmt.Sprintf("\n*%d LPO entries awaiting a journey:*\n", len(pendingEntries)))
		for _, e := range pendingEntries {
			message.WriteString(fmt.Sprintf("• Truck %s — %.0f lts, DO %s, station %s\n",
				e.TruckNo, e.Liters, e.DoNo, e.Station))
		}
	}

	_, err := s.SendMessage(message.String())
	return err
}
