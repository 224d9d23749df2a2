package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// advisoryCmd fetches the live advisory of a session from a running server.
// The endpoint only answers loopback clients.
func advisoryCmd(args []string) {
	fs := flag.NewFlagSet("advisory", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	sessionID := fs.String("session", "", "session id")
	history := fs.Bool("history", false, "fetch indexed history instead of the live advisory")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}
	leaf := "advisory"
	if *history {
		leaf = "history"
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/sessions/" + url.PathEscape(*sessionID) + "/" + leaf
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
