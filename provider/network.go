package provider

import (
	"io"
	"net/http"
	"time"

	Logger "github.com/BagetTeam/ReeLearners/utils/log"
)

type HttpClient struct{}

func (HttpClient) Get(uri string) (resp *http.Response, err error) {
	return http.Get(uri)
}

// GetWithin issues a GET with a hard timeout budget. A provider slower than
// its budget is treated as empty for the cycle, not waited on.
func (HttpClient) GetWithin(uri string, seconds int) (resp *http.Response, err error) {
	client := &http.Client{Timeout: time.Duration(seconds) * time.Second}
	return client.Get(uri)
}

func (HttpClient) PostWithin(uri, contentType string, body io.Reader, seconds int) (resp *http.Response, err error) {
	client := &http.Client{Timeout: time.Duration(seconds) * time.Second}
	return client.Post(uri, contentType, body)
}

// Log http response if the error code is not 2XX
func MaybeLogNon200HttpError(res *http.Response) {
	if IsNon200HttpResponse(res) {
		Logger.Log.Errorf("non-200 http code: %d", res.StatusCode)
	}
}

func IsNon200HttpResponse(res *http.Response) bool {
	return res.StatusCode >= 300
}

// ReadHttpResponseBody drains and closes the body, empty string on failure.
func ReadHttpResponseBody(res *http.Response) string {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ""
	}
	return string(body)
}
