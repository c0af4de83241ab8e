package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffIsAdditiveLinear(t *testing.T) {
	tr := New()
	start := time.Now()

	assert.False(t, tr.IsFailing("https://a.example", start))

	tr.JustFailed("https://a.example", start)
	assert.Equal(t, 1, tr.Failures("https://a.example"))
	assert.True(t, tr.IsFailing("https://a.example", start.Add(29*time.Second)))
	assert.False(t, tr.IsFailing("https://a.example", start.Add(31*time.Second)))

	tr.JustFailed("https://a.example", start)
	assert.Equal(t, 2, tr.Failures("https://a.example"))
	assert.True(t, tr.IsFailing("https://a.example", start.Add(59*time.Second)))
	assert.False(t, tr.IsFailing("https://a.example", start.Add(61*time.Second)))
}

func TestBackOnResetsFailures(t *testing.T) {
	tr := New()
	now := time.Now()
	tr.JustFailed("https://a.example", now)
	tr.JustFailed("https://a.example", now)
	assert.Equal(t, 2, tr.Failures("https://a.example"))

	tr.BackOn("https://a.example", now)
	assert.Equal(t, 0, tr.Failures("https://a.example"))
	assert.False(t, tr.IsFailing("https://a.example", now))
}

func TestBackOnNoOpWhenNeverFailed(t *testing.T) {
	tr := New()
	tr.BackOn("https://never-failed.example", time.Now())
	assert.Equal(t, 0, tr.Failures("https://never-failed.example"))
}
