package main

import (
	"fmt"
	"os"

	"concierge/internal/natsbus"
)

type promptResponse struct {
	OK      bool     `json:"ok,omitempty"`
	Error   string   `json:"error,omitempty"`
	ID      string   `json:"id,omitempty"`
	Prompts []prompt `json:"prompts,omitempty"`
}

type prompt struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Prompt   string `json:"prompt"`
	Status   string `json:"status"`
}

type turnResponse struct {
	Status string `json:"status"`
	Speech string `json:"speech"`
	Error  string `json:"error,omitempty"`
}

func request(natsURL, topic string, payload map[string]any, out any) error {
	c, err := natsbus.NewClientFromURL(natsURL)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.RequestJSON(topic, payload, out)
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  ctask say --session "..." --prompt "..."`)
	fmt.Fprintln(os.Stderr, `  ctask create --name "..." --schedule "..." --prompt "..." [--session "..."]`)
	fmt.Fprintln(os.Stderr, "  ctask list")
	fmt.Fprintln(os.Stderr, `  ctask delete --id "..."`)
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "say":
		args := parseArgs(rest)
		if args["session"] == "" || args["prompt"] == "" {
			fatal("--session and --prompt are required")
		}
		var resp turnResponse
		err := request(natsURL, natsbus.TopicTurn, map[string]any{
			"session_id": args["session"],
			"prompt":     args["prompt"],
		}, &resp)
		if err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Printf("[%s] %s\n", resp.Status, resp.Speech)

	case "create":
		args := parseArgs(rest)
		if args["name"] == "" || args["schedule"] == "" || args["prompt"] == "" {
			fatal("--name, --schedule, and --prompt are required")
		}
		payload := map[string]any{
			"name":     args["name"],
			"schedule": args["schedule"],
			"prompt":   args["prompt"],
		}
		if args["session"] != "" {
			payload["session_id"] = args["session"]
		}
		var resp promptResponse
		if err := request(natsURL, natsbus.TopicPromptCreate, payload, &resp); err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Printf("Prompt created: %s\n", resp.ID)

	case "list":
		var resp promptResponse
		if err := request(natsURL, natsbus.TopicPromptList, map[string]any{}, &resp); err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		if len(resp.Prompts) == 0 {
			fmt.Println("No scheduled prompts found.")
		} else {
			for _, p := range resp.Prompts {
				fmt.Printf("  %s  %s  %s  [%s]\n", p.ID, p.Status, p.Name, p.Schedule)
			}
		}

	case "delete":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		var resp promptResponse
		if err := request(natsURL, natsbus.TopicPromptDelete, map[string]any{
			"id": args["id"],
		}, &resp); err != nil {
			fatal("%v", err)
		}
		if resp.Error != "" {
			fatal("%s", resp.Error)
		}
		fmt.Println("Prompt deleted.")

	default:
		fatal("unknown command: %s", command)
	}
}
