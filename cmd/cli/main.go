package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
)

const usage = `usage: cli <command>

  list                 show registered checks
  add [flags]          register a check (prompts for anything not given)
  delete <id>          remove a check

environment: API_BASE (default http://localhost:8080), API_KEY`

type client struct {
	base string
	key  string
	http *http.Client
}

// checkRow is one element of GET /api/checks.
type checkRow struct {
	ID             string   `json:"id"`
	OwnerContact   string   `json:"ownerContact"`
	Protocol       string   `json:"protocol"`
	Host           string   `json:"host"`
	Method         string   `json:"method"`
	AcceptedCodes  []int    `json:"acceptedCodes"`
	TimeoutSeconds float64  `json:"timeoutSeconds"`
	State          string   `json:"state"`
	LastCheckedAt  int64    `json:"lastCheckedAt"`
	Valid          bool     `json:"valid"`
	Problems       []string `json:"problems"`
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	c := &client{
		base: strings.TrimRight(base, "/"),
		key:  os.Getenv("API_KEY"),
		http: &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = c.list(os.Stdout)
	case "add":
		err = c.add(os.Args[2:], os.Stdin, os.Stdout)
	case "delete":
		if len(os.Args) != 3 {
			err = fmt.Errorf("delete needs exactly one id")
			break
		}
		err = c.remove(os.Args[2], os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting API: %w", err)
	}
	return resp, nil
}

func (c *client) list(out io.Writer) error {
	resp, err := c.do(http.MethodGet, "/api/checks", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	var rows []checkRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	renderChecks(out, rows)
	return nil
}

func renderChecks(out io.Writer, rows []checkRow) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Owner", "Target", "Accepted", "Timeout", "State", "Last Checked"})

	for _, r := range rows {
		target := strings.ToUpper(r.Method) + " " + r.Protocol + "://" + r.Host
		if !r.Valid {
			target = text.FgRed.Sprint("invalid: " + strings.Join(r.Problems, ","))
		}
		last := "never"
		if r.LastCheckedAt > 0 {
			last = time.UnixMilli(r.LastCheckedAt).UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			r.ID,
			r.OwnerContact,
			target,
			joinInts(r.AcceptedCodes),
			fmt.Sprintf("%gs", r.TimeoutSeconds),
			colorizeState(r.State),
			last,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(rows)})
	t.Render()
}

func colorizeState(s string) string {
	switch s {
	case "up":
		return text.FgGreen.Sprint(s)
	case "down":
		return text.FgRed.Sprint(s)
	default:
		return text.FgYellow.Sprint("pending")
	}
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func (c *client) add(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	target := fs.String("url", "", "site to monitor, e.g. https://example.com/health")
	owner := fs.String("owner", "", "contact to alert (phone number)")
	method := fs.String("method", "get", "get|post|put|delete")
	codes := fs.String("codes", "200", "accepted status codes, comma-separated")
	timeout := fs.Int("timeout", 3, "timeout in seconds (1-5)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	if *target == "" {
		*target = prompt(reader, out, "Enter a site URL to monitor (e.g., https://example.com): ")
	}
	if *owner == "" {
		*owner = prompt(reader, out, "Enter the phone number to alert: ")
	}
	if !strings.Contains(*target, "://") {
		*target = "https://" + *target
	}

	accepted, err := parseCodes(*codes)
	if err != nil {
		return err
	}

	resp, err := c.do(http.MethodPost, "/api/checks", map[string]any{
		"url":            *target,
		"ownerContact":   *owner,
		"method":         *method,
		"acceptedCodes":  accepted,
		"timeoutSeconds": *timeout,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	var created checkRow
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Fprintf(out, "Added %s (%s %s://%s). Run `cli list` to follow it.\n",
		created.ID, strings.ToUpper(created.Method), created.Protocol, created.Host)
	return nil
}

func (c *client) remove(id string, out io.Writer) error {
	resp, err := c.do(http.MethodDelete, "/api/checks/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	fmt.Fprintln(out, "Deleted", id)
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, q string) string {
	fmt.Fprint(out, q)
	s, _ := r.ReadString('\n')
	return strings.TrimSpace(s)
}

func parseCodes(s string) ([]int, error) {
	var out []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad status code %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := "API returned " + resp.Status
	if body.Error != "" {
		msg += ": " + body.Error
	}
	if len(body.Fields) > 0 {
		msg += " (" + strings.Join(body.Fields, ", ") + ")"
	}
	return fmt.Errorf("%s", msg)
}
