package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:9999/api/dedupe/v1"

const sampleCSV = `name,city
robert smith,chicago
bob smith,chicago
roberta smyth,evanston
jane doe,chicago
jayne doe,chicago
alice jones,skokie
`

// Simplified DTOs for the script
type envelope struct {
	Data json.RawMessage `json:"data"`
}

type startSessionData struct {
	SessionId string   `json:"session_id"`
	Filename  string   `json:"filename"`
	RowCount  int      `json:"row_count"`
	Fields    []string `json:"fields"`
}

type pairField struct {
	Field string `json:"field"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type markResponse struct {
	Counter *struct {
		Yes    int `json:"yes"`
		No     int `json:"no"`
		Unsure int `json:"unsure"`
	} `json:"counter"`
	Submitted bool   `json:"submitted"`
	JobKey    string `json:"job_key"`
}

type pollResponse struct {
	Ready  bool            `json:"ready"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func main() {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	info := color.New(color.FgCyan)

	bold.Println("=== Dedupe Workflow Simulation Client ===")

	session, err := startSession()
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	ok.Printf("Session started: %s (%d rows, fields %v)\n", session.SessionId, session.RowCount, session.Fields)

	if err := selectFields(session.SessionId, []string{"name", "city"}); err != nil {
		log.Fatalf("Failed to select fields: %v", err)
	}
	ok.Println("Fields selected: name, city")

	// Label a handful of pairs, alternating decisions like a human would.
	actions := []string{"yes", "no", "yes", "unsure", "no"}
	for _, action := range actions {
		pair, err := nextPair(session.SessionId)
		if err != nil {
			log.Fatalf("Failed to fetch pair: %v", err)
		}
		info.Printf("Pair: %v\n", pair)

		mark, err := markPair(session.SessionId, action)
		if err != nil {
			log.Fatalf("Failed to mark pair: %v", err)
		}
		info.Printf("  -> %s, counter %+v\n", action, *mark.Counter)
	}

	mark, err := markPair(session.SessionId, "finish")
	if err != nil {
		log.Fatalf("Failed to finish: %v", err)
	}
	ok.Printf("Clustering job submitted: %s\n", mark.JobKey)

	for i := 0; i < 30; i++ {
		poll, err := pollJob(mark.JobKey)
		if err != nil {
			log.Fatalf("Failed to poll: %v", err)
		}
		if poll.Ready {
			if poll.Error != "" {
				color.Red("Job failed: %s", poll.Error)
				return
			}
			ok.Printf("Job finished: %s\n", poll.Result)
			return
		}
		info.Println("Still working...")
		time.Sleep(1 * time.Second)
	}
	color.Red("Gave up waiting for the job result")
}

func startSession() (*startSessionData, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("input_file", "people.csv")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(sampleCSV)); err != nil {
		return nil, err
	}
	writer.Close()

	resp, err := http.Post(baseURL+"/session", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := decode(resp, &env); err != nil {
		return nil, err
	}
	var data startSessionData
	return &data, json.Unmarshal(env.Data, &data)
}

func selectFields(sessionID string, fields []string) error {
	payload, _ := json.Marshal(map[string]interface{}{"fields": fields})
	resp, err := http.Post(baseURL+"/session/"+sessionID+"/fields", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func nextPair(sessionID string) ([]pairField, error) {
	resp, err := http.Get(baseURL + "/session/" + sessionID + "/pair")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var fields []pairField
	return fields, decode(resp, &fields)
}

func markPair(sessionID, action string) (*markResponse, error) {
	resp, err := http.Get(baseURL + "/session/" + sessionID + "/mark?action=" + action)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var mark markResponse
	return &mark, decode(resp, &mark)
}

func pollJob(jobKey string) (*pollResponse, error) {
	resp, err := http.Get(baseURL + "/job/" + jobKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var poll pollResponse
	return &poll, decode(resp, &poll)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func decode(resp *http.Response, v interface{}) error {
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
