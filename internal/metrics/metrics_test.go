package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/ripfetch/internal/utils"
)

var _ utils.Observer = (*Observer)(nil)

// counter reads one counter from the observer's registry; status selects a
// series of the finished vector.
func counter(t *testing.T, o *Observer, name, status string) float64 {
	t.Helper()
	families, err := o.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if status == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestObserver_Counts(t *testing.T) {
	o := NewObserver()
	o.Started("a")
	o.Started("b")
	o.Started("c")
	o.BytesCompleted("a", 100)
	o.BytesCompleted("a", 250)
	o.BytesCompleted("a", 250)
	o.Completed("a", "/tmp/a")
	o.Errored("b", errors.New("x"))
	o.Exists("c", "/tmp/c")
	o.LimitReached()

	assert.Equal(t, 3.0, counter(t, o, "ripfetch_downloads_started_total", ""))
	assert.Equal(t, 250.0, counter(t, o, "ripfetch_download_bytes_total", ""))
	assert.Equal(t, 1.0, counter(t, o, "ripfetch_downloads_finished_total", "completed"))
	assert.Equal(t, 1.0, counter(t, o, "ripfetch_downloads_finished_total", "errored"))
	assert.Equal(t, 1.0, counter(t, o, "ripfetch_downloads_finished_total", "exists"))
	assert.Equal(t, 0.0, counter(t, o, "ripfetch_downloads_finished_total", "interrupted"))
	assert.Equal(t, 1.0, counter(t, o, "ripfetch_download_limit_reached_total", ""))
	assert.Empty(t, o.seen)
}

func TestObserver_SeparateRegistries(t *testing.T) {
	a, b := NewObserver(), NewObserver()
	a.Started("x")
	assert.Equal(t, 1.0, counter(t, a, "ripfetch_downloads_started_total", ""))
	assert.Equal(t, 0.0, counter(t, b, "ripfetch_downloads_started_total", ""))
}

func TestObserver_Handler(t *testing.T) {
	o := NewObserver()
	o.Completed("a", "/tmp/a")
	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `ripfetch_downloads_finished_total{status="completed"} 1`)
}
