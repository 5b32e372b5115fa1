// Package main provides a terminal client for the persona chat API.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

// Persona is the subset of a personality the client displays.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Starters    []string `json:"starters"`
}

// Message is one stored chat message.
type Message struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// Event is one server-sent chat event.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
	Delta   string   `json:"delta"`
}

type apiError struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons"`
}

// Client talks to the persona chat HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e apiError
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			if len(e.Reasons) > 0 {
				return nil, fmt.Errorf("%s: %s", e.Error, strings.Join(e.Reasons, "; "))
			}
			return nil, errors.New(e.Error)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// State returns the personalities and the active id.
func (c *Client) State(ctx context.Context) ([]Persona, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/state", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var st struct {
		ActivePersonalityID string    `json:"active_personality_id"`
		Personalities       []Persona `json:"personalities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, "", fmt.Errorf("decode state: %w", err)
	}
	return st.Personalities, st.ActivePersonalityID, nil
}

// Select makes id the active personality.
func (c *Client) Select(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodPut, "/v1/active", map[string]string{"personality_id": id})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Clear empties the transcript of id.
func (c *Client) Clear(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/personas/"+id+"/messages", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// History returns the transcript of id.
func (c *Client) History(ctx context.Context, id string) ([]Message, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/personas/"+id+"/messages", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out.Messages, nil
}

// Send posts text to id and calls onEvent for every streamed event.
func (c *Client) Send(ctx context.Context, id, text string, onEvent func(Event)) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/personas/"+id+"/messages", map[string]string{"text": text})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Only data lines matter; the event name is repeated in the payload.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		onEvent(ev)
	}
	return scanner.Err()
}

var (
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
	errorColor = color.New(color.FgRed)
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Persona chat server address")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(*addr)
	personas, active, err := client.State(ctx)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	fmt.Println(boldGreen("Persona Chat"))
	printPersonas(personas, active)
	fmt.Println("Commands: /list, /use <id>, /history, /clear, /quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, client, input, &personas, &active); quit {
				fmt.Println("Bye!")
				return
			}
			continue
		}

		// Ctrl+C cancels the reply in flight instead of exiting.
		replyCtx, stop := context.WithCancel(ctx)
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case <-interrupt:
				stop()
			case <-replyCtx.Done():
			}
		}()

		fmt.Print(boldCyan(personaName(personas, active) + ": "))
		err := client.Send(replyCtx, active, input, func(ev Event) {
			switch ev.Type {
			case "message", "delta":
				if ev.Message != nil && ev.Message.Role == "model" {
					fmt.Print(ev.Delta)
				}
			case "error":
				if ev.Message != nil {
					errorColor.Print(ev.Message.Text)
				}
			}
		})
		signal.Stop(interrupt)
		stop()
		fmt.Println()
		if err != nil && !errors.Is(err, context.Canceled) {
			errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Println()
	}
}

func runCommand(ctx context.Context, client *Client, input string, personas *[]Persona, active *string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/list":
		list, id, err := client.State(ctx)
		if err != nil {
			errorColor.Printf("Error: %v\n", err)
			return false
		}
		*personas, *active = list, id
		printPersonas(list, id)

	case "/use":
		if len(fields) < 2 {
			fmt.Println("Usage: /use <id>")
			return false
		}
		if err := client.Select(ctx, fields[1]); err != nil {
			errorColor.Printf("Error: %v\n", err)
			return false
		}
		*active = fields[1]
		p := findPersona(*personas, fields[1])
		fmt.Printf("Now talking to %s\n", boldCyan(p.Name))
		for _, s := range p.Starters {
			fmt.Println(faint("  try: " + s))
		}

	case "/history":
		msgs, err := client.History(ctx, *active)
		if err != nil {
			errorColor.Printf("Error: %v\n", err)
			return false
		}
		for _, m := range msgs {
			if m.Role == "user" {
				fmt.Printf("%s %s\n", boldGreen("You:"), m.Text)
			} else {
				fmt.Printf("%s %s\n", boldCyan(personaName(*personas, *active)+":"), m.Text)
			}
		}

	case "/clear":
		if err := client.Clear(ctx, *active); err != nil {
			errorColor.Printf("Error: %v\n", err)
			return false
		}
		fmt.Println(faint("Conversation cleared"))

	default:
		fmt.Printf("Unknown command: %s\n", fields[0])
	}
	return false
}

func printPersonas(personas []Persona, active string) {
	for _, p := range personas {
		marker := "  "
		if p.ID == active {
			marker = boldGreen("* ")
		}
		fmt.Printf("%s%s %s %s\n", marker, p.Icon, boldCyan(p.ID), faint(p.Description))
	}
}

func findPersona(personas []Persona, id string) Persona {
	for _, p := range personas {
		if p.ID == id {
			return p
		}
	}
	return Persona{ID: id, Name: id}
}

func personaName(personas []Persona, id string) string {
	return findPersona(personas, id).Name
}
