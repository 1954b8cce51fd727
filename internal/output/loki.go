package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"pingpong/internal/event"
)

type LokiClient struct {
	endpoint string
	client   *http.Client
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

func NewLokiClient(endpoint string) *LokiClient {
	return &LokiClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (l *LokiClient) Push(ev event.Exchange) error {
	ts := ev.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}

	stream := lokiStream{
		Stream: map[string]string{
			"app":  "pingpong",
			"role": ev.Role,
			"pid":  strconv.Itoa(ev.PID),
			"kind": string(ev.Kind),
		},
		Values: [][]string{
			{strconv.FormatInt(ts, 10), ev.String()},
		},
	}

	body, err := json.Marshal(lokiPushRequest{Streams: []lokiStream{stream}})
	if err != nil {
		return err
	}

	resp, err := l.client.Post(l.endpoint, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("loki returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
