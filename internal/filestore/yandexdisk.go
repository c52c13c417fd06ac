package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

const (
	YandexDiskAPI    = "https://cloud-api.yandex.net/v1/disk"
	DefaultYandexDir = "hireboard-cv"
)

// YandexDisk stores CV files in a Yandex.Disk folder via the REST API.
type YandexDisk struct {
	client  *retryablehttp.Client
	token   string
	folder  string
	baseURL string
}

var _ Store = (*YandexDisk)(nil)

type YandexOption func(*YandexDisk)

// WithBaseURL points the store at another API root, e.g. a test server.
func WithBaseURL(u string) YandexOption {
	return func(y *YandexDisk) { y.baseURL = strings.TrimRight(u, "/") }
}

func WithRetries(max int, waitMin, waitMax time.Duration) YandexOption {
	return func(y *YandexDisk) {
		y.client.RetryMax = max
		y.client.RetryWaitMin = waitMin
		y.client.RetryWaitMax = waitMax
	}
}

func NewYandexDisk(token, folder string, log logrus.FieldLogger, opts ...YandexOption) (*YandexDisk, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New("yandex disk token is required")
	}
	if folder = strings.Trim(folder, "/ "); folder == "" {
		folder = DefaultYandexDir
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 60 * time.Second
	client.Logger = leveledLogger{log: log.WithField("component", "yandex_disk")}

	y := &YandexDisk{client: client, token: token, folder: folder, baseURL: YandexDiskAPI}
	for _, opt := range opts {
		opt(y)
	}
	return y, nil
}

// EnsureFolder creates the upload folder if it does not exist yet.
func (y *YandexDisk) EnsureFolder(ctx context.Context) error {
	resp, err := y.do(ctx, http.MethodPut, y.apiURL("/resources", url.Values{"path": {y.folder}}), nil)
	if err != nil {
		return apperrors.Wrap(err, "create yandex disk folder")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusConflict:
		return nil
	default:
		return apiError("create folder", resp)
	}
}

func (y *YandexDisk) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := NewKey(name)

	href, err := y.link(ctx, "/resources/upload", url.Values{"path": {y.remotePath(key)}, "overwrite": {"true"}})
	if err != nil {
		return "", apperrors.Wrap(err, "request upload link")
	}

	resp, err := y.do(ctx, http.MethodPut, href, data)
	if err != nil {
		return "", apperrors.Wrap(err, "upload cv file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", apiError("upload", resp)
	}
	return key, nil
}

func (y *YandexDisk) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	href, err := y.link(ctx, "/resources/download", url.Values{"path": {y.remotePath(key)}})
	if err != nil {
		return nil, err
	}

	resp, err := y.do(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "download cv file")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError("download", resp)
	}
	return resp.Body, nil
}

func (y *YandexDisk) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	resp, err := y.do(ctx, http.MethodDelete, y.apiURL("/resources", url.Values{
		"path":        {y.remotePath(key)},
		"permanently": {"true"},
	}), nil)
	if err != nil {
		return apperrors.Wrap(err, "delete cv file")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusAccepted, http.StatusNotFound:
		return nil
	default:
		return apiError("delete", resp)
	}
}

// link asks the API for a one-off upload or download URL.
func (y *YandexDisk) link(ctx context.Context, endpoint string, q url.Values) (string, error) {
	resp, err := y.do(ctx, http.MethodGet, y.apiURL(endpoint, q), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", apperrors.NotFound("cv file")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiError(endpoint, resp)
	}

	var body struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperrors.Wrap(err, "decode link response")
	}
	if body.Href == "" {
		return "", apperrors.Newf("yandex disk %s returned no link", endpoint)
	}
	return body.Href, nil
}

func (y *YandexDisk) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var payload any
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+y.token)
	return y.client.Do(req)
}

func (y *YandexDisk) apiURL(endpoint string, q url.Values) string {
	return y.baseURL + endpoint + "?" + q.Encode()
}

func (y *YandexDisk) remotePath(key string) string {
	return "disk:/" + path.Join(y.folder, key)
}

func apiError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apperrors.Newf("yandex disk %s: %s: %s", op, resp.Status, strings.TrimSpace(string(msg)))
}

// leveledLogger routes retryablehttp logs to logrus.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) entry(kv []any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...any) { l.entry(kv).Error(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.entry(kv).Info(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.entry(kv).Debug(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.entry(kv).Warn(msg) }
