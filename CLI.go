package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Big-First/NinfaBot-sub000/chat"
)

// ChatCLI reads lines from stdin and sends each one to the chat server.
func ChatCLI(addr string, maxTokens int) {
	client := &http.Client{Timeout: 30 * time.Second}
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("ChatCLI connected to %s. Type 'exit' to quit.\n", addr)
	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "exit" || (err != nil && input == "") {
			break
		}
		if input == "" {
			continue
		}

		reply, err := ask(client, addr, chat.GenerateRequest{Text: input, MaxTokens: maxTokens})
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}
		if reply.Text == "" {
			reply.Text = "..."
		}
		fmt.Println("Bot:", reply.Text)
	}
}

func ask(client *http.Client, addr string, req chat.GenerateRequest) (chat.GenerateResponse, error) {
	var out chat.GenerateResponse
	body, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	resp, err := client.Post("http://"+addr+"/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode reply: %w", err)
	}
	return out, nil
}
