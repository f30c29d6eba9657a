package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/neurobridge-competency/internal/platform/envutil"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Params are the arguments of a web service function. Nested maps and slices are
// flattened into Moodle's bracket notation (a[0][b]=c).
type Params map[string]any

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: strings.TrimRight(envutil.String("MOODLE_URL", ""), "/"),
		Token:   envutil.String("MOODLE_TOKEN", ""),
		Timeout: envutil.Seconds("MOODLE_TIMEOUT_SECONDS", 30*time.Second),
	}
}

// Client calls webservice/rest/server.php with the JSON response format.
type Client struct {
	log        *logger.Logger
	restURL    string
	token      string
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing MOODLE_URL")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("missing MOODLE_TOKEN")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		log:        log.With("client", "Moodle"),
		restURL:    strings.TrimRight(cfg.BaseURL, "/") + "/webservice/rest/server.php",
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Call invokes function and decodes the JSON result into out (which may be nil).
// A Moodle exception payload is returned as *Exception.
func (c *Client) Call(ctx context.Context, function string, params Params, out any) error {
	form := url.Values{}
	form.Set("wstoken", c.token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		flatten(form, k, params[k])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("moodle %s: %w", function, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("moodle %s: read body: %w", function, readErr)
	}
	c.log.Debug("Moodle call", "function", function, "status", resp.StatusCode, "elapsed", time.Since(start).String())
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if ex := decodeException(raw); ex != nil {
		ex.Function = function
		return ex
	}
	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("moodle %s: decode: %w", function, err)
	}
	return nil
}

func decodeException(raw []byte) *Exception {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil
	}
	if _, ok := probe["exception"]; !ok {
		return nil
	}
	var ex Exception
	if err := json.Unmarshal(trimmed, &ex); err != nil {
		return &Exception{Exception: "unknown", Message: string(trimmed)}
	}
	return &ex
}

func flatten(form url.Values, key string, v any) {
	switch t := v.(type) {
	case nil:
		return
	case Params:
		flattenMap(form, key, t)
	case map[string]any:
		flattenMap(form, key, t)
	case []map[string]any:
		for i, item := range t {
			flattenMap(form, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []any:
		for i, item := range t {
			flatten(form, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []string:
		for i, item := range t {
			form.Set(fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []int64:
		for i, item := range t {
			form.Set(fmt.Sprintf("%s[%d]", key, i), strconv.FormatInt(item, 10))
		}
	case []int:
		for i, item := range t {
			form.Set(fmt.Sprintf("%s[%d]", key, i), strconv.Itoa(item))
		}
	default:
		form.Set(key, scalar(t))
	}
}

func flattenMap(form url.Values, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		flatten(form, prefix+"["+k+"]", m[k])
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// SiteInfo is the subset of core_webservice_get_site_info used for capability checks.
type SiteInfo struct {
	SiteName  string `json:"sitename"`
	UserID    int64  `json:"userid"`
	Functions []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"functions"`
}

func (s SiteInfo) HasFunction(name string) bool {
	for _, f := range s.Functions {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (c *Client) SiteInfo(ctx context.Context) (SiteInfo, error) {
	var info SiteInfo
	err := c.Call(ctx, "core_webservice_get_site_info", nil, &info)
	return info, err
}
