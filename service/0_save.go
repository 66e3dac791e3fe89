package service

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Save renders a request/response pair as a markdown example when the
// API_EXAMPLES_PATH environment variable points to a directory.
func Save(response *apitest.Response, title, description string) {

	examplesPath := os.Getenv("API_EXAMPLES_PATH")
	if examplesPath == "" {
		return
	}

	request := response.Request
	query := ""
	if request.URL.RawQuery != "" {
		query = "?" + request.URL.RawQuery
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "# %s\n\n", title)
	if description != "" {
		fmt.Fprintf(b, "%s\n\n", strings.TrimSpace(description))
	}

	b.WriteString("Curl example:\n\n```sh\n")
	fmt.Fprintf(b, "curl -X %s \"https://example.com%s%s\"", request.Method, request.URL.Path, query)
	for _, k := range sortedHeaderKeys(request.Header) {
		for _, v := range request.Header[k] {
			fmt.Fprintf(b, " \\\n-H \"%s: %s\"", k, v)
		}
	}
	if requestBody := formatJSON(response.BodyRequestString()); requestBody != "" {
		fmt.Fprintf(b, " \\\n-d '%s'", requestBody)
	}
	b.WriteString("\n```\n\n")

	b.WriteString("HTTP request/response example:\n\n```http\n")
	fmt.Fprintf(b, "%s %s%s %s\nHost: example.com\n", request.Method, request.URL.Path, query, request.Proto)
	for _, k := range sortedHeaderKeys(request.Header) {
		for _, v := range request.Header[k] {
			fmt.Fprintf(b, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintf(b, "\n%s\n\n", formatJSON(response.BodyRequestString()))

	fmt.Fprintf(b, "%s %s\n", response.Proto, response.Status)
	for _, k := range sortedHeaderKeys(response.Header) {
		if k == "Date" {
			b.WriteString("Date: Mon, 15 Aug 2022 02:08:13 GMT\n")
			continue
		}
		for _, v := range response.Header[k] {
			fmt.Fprintf(b, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintf(b, "\n%s\n```\n", formatJSON(response.BodyString()))

	filename := strings.ReplaceAll(strings.ToLower(title), " ", "_") + ".md"
	p := path.Join(examplesPath, path.Clean(filename))
	err := os.WriteFile(p, []byte(b.String()), 0666)
	if err != nil {
		fmt.Println("Saving err:", err)
	}
}

func sortedHeaderKeys(header map[string][]string) []string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatJSON(body string) string {

	var i any
	err := json.Unmarshal([]byte(body), &i)
	if err != nil {
		return body
	}

	formatted, err := json.Marshal(i, json.Deterministic(true), jsontext.WithIndent("    "))
	if err != nil {
		return body
	}

	return string(formatted)
}
