package moodle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{BaseURL: srv.URL, Token: "tok"})
	require.NoError(t, err)
	return c
}

func TestCallFlattensNestedParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webservice/rest/server.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "tok", r.PostForm.Get("wstoken"))
		require.Equal(t, "core_competency_create_competency", r.PostForm.Get("wsfunction"))
		require.Equal(t, "json", r.PostForm.Get("moodlewsrestformat"))
		require.Equal(t, "Loops", r.PostForm.Get("competency[shortname]"))
		require.Equal(t, "7", r.PostForm.Get("competency[competencyframeworkid]"))
		require.Equal(t, "3", r.PostForm.Get("filters[0][value]"))
		require.Equal(t, "1", r.PostForm.Get("includes[1]"))
		_, _ = w.Write([]byte(`{"id": 42, "shortname": "Loops"}`))
	})

	var out struct {
		ID int64 `json:"id"`
	}
	err := c.Call(context.Background(), "core_competency_create_competency", Params{
		"competency": map[string]any{
			"shortname":             "Loops",
			"competencyframeworkid": int64(7),
		},
		"filters":  []map[string]any{{"value": 3}},
		"includes": []int64{0, 1},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, int64(42), out.ID)
}

func TestCallMapsExceptions(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"nopermissions", ErrPermission},
		{"accessexception", ErrPermission},
		{"invalidrecord", ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"exception":"moodle_exception","errorcode":"` + tc.code + `","message":"nope"}`))
			})
			err := c.Call(context.Background(), "core_competency_add_competency_to_course", nil, nil)
			require.ErrorIs(t, err, tc.want)
			var ex *Exception
			require.True(t, errors.As(err, &ex))
			require.Equal(t, "core_competency_add_competency_to_course", ex.Function)
		})
	}
}

func TestCallNullResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	var out []int
	require.NoError(t, c.Call(context.Background(), "local_competency_linker_remove_competency_from_module", nil, &out))
	require.Nil(t, out)
}

func TestCallHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := c.Call(context.Background(), "core_webservice_get_site_info", nil, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadGateway, httpErr.HTTPStatusCode())
}

func TestSiteInfoHasFunction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sitename":"LMS","userid":2,"functions":[{"name":"core_competency_create_competency","version":"2024"}]}`))
	})
	info, err := c.SiteInfo(context.Background())
	require.NoError(t, err)
	require.True(t, info.HasFunction("core_competency_create_competency"))
	require.False(t, info.HasFunction("local_competency_linker_add_competency_to_module"))
}
