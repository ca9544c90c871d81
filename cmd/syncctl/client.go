package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newClient(baseURL, token string) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func syncPath(user, entity string) string {
	return fmt.Sprintf("/api/users/%s/sync/%s", url.PathEscape(user), url.PathEscape(entity))
}

func runPreview(c *resty.Client, user, entity, database string, out io.Writer) error {
	body := map[string]string{}
	if database != "" {
		body["databaseId"] = database
	}
	return post(c, syncPath(user, entity)+"/preview", body, out)
}

func runSync(c *resty.Client, user, entity, strategy, database string, out io.Writer) error {
	body := map[string]string{"strategy": strategy}
	if database != "" {
		body["databaseId"] = database
	}
	return post(c, syncPath(user, entity), body, out)
}

func runHealth(c *resty.Client, out io.Writer) error {
	resp, err := c.R().Get("/api/health")
	if err != nil {
		return err
	}
	return render(resp, out)
}

func post(c *resty.Client, path string, body any, out io.Writer) error {
	resp, err := c.R().SetBody(body).Post(path)
	if err != nil {
		return err
	}
	return render(resp, out)
}

// render pretty-prints a JSON response or turns an error body into an error.
func render(resp *resty.Response, out io.Writer) error {
	if resp.IsError() {
		var e errorResponse
		if json.Unmarshal(resp.Body(), &e) == nil && e.Message != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), e.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body(), "", "  "); err != nil {
		_, err = out.Write(resp.Body())
		return err
	}
	_, err := fmt.Fprintln(out, buf.String())
	return err
}
