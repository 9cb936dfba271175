package labeler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachLabel(t *testing.T) {
	var got *http.Request
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		form = r.PostForm
	}))
	defer server.Close()

	mutator := NewLabelMutator(server.URL)
	session := Session{Cookie: "planning_center_session=s1", CSRFToken: "tok-1"}
	err := mutator.AttachLabel(context.Background(), session, "D1", "L9")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/donations/D1", got.URL.Path)
	assert.Equal(t, "planning_center_session=s1", got.Header.Get("Cookie"))
	assert.Equal(t, "tok-1", got.Header.Get("X-Csrf-Token"))
	assert.Equal(t, "patch", form["_method"][0])
	assert.Equal(t, "D1", form["donation[id]"][0])
	assert.Equal(t, "labels", form["section"][0])
	assert.Equal(t, "", form["donation[donations_labels_attributes][][id]"][0])
	assert.Equal(t, "L9", form["donation[donations_labels_attributes][][label_id]"][0])
}

func TestAttachLabelRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/login/new")
		w.WriteHeader(http.StatusFound)
		fmt.Fprint(w, "session expired")
	}))
	defer server.Close()

	mutator := NewLabelMutator(server.URL)
	err := mutator.AttachLabel(context.Background(), Session{Cookie: "c", CSRFToken: "t"}, "D1", "L9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 302")
}
