package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

var eight = model.ClockTime{Hour: 8}

func at(h, m, s int) model.LocalTime { return model.LocalTime{Hour: h, Minute: m, Second: s} }

func TestFirstMatchAfterBootIsDue(t *testing.T) {
	e := NewEvaluator(0)
	assert.Equal(t, Due, e.Evaluate(at(8, 0, 5), eight, 2*time.Second))

	last, ok := e.LastFeed()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, last)
}

func TestOnlyOnceWithinDebounceWindow(t *testing.T) {
	e := NewEvaluator(60 * time.Second)
	base := 10 * time.Minute

	assert.Equal(t, Due, e.Evaluate(at(8, 0, 0), eight, base))
	assert.Equal(t, NotDue, e.Evaluate(at(8, 0, 30), eight, base+30*time.Second))
	assert.Equal(t, NotDue, e.Evaluate(at(8, 0, 59), eight, base+59*time.Second))
}

func TestDueAgainOnceWindowElapsed(t *testing.T) {
	e := NewEvaluator(60 * time.Second)

	assert.Equal(t, Due, e.Evaluate(at(8, 0, 0), eight, 0))
	assert.Equal(t, Due, e.Evaluate(at(8, 0, 0), eight, 24*time.Hour))
}

func TestOtherMinutesNeverDue(t *testing.T) {
	e := NewEvaluator(0)
	for _, lt := range []model.LocalTime{at(7, 59, 59), at(8, 1, 0), at(20, 0, 0)} {
		assert.Equal(t, NotDue, e.Evaluate(lt, eight, time.Hour), lt.String())
	}
	_, ok := e.LastFeed()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "due", Due.String())
	assert.Equal(t, "not_due", NotDue.String())
}

func TestDueSoon(t *testing.T) {
	w := 5 * time.Minute
	assert.True(t, DueSoon(at(7, 56, 0), eight, w))
	assert.True(t, DueSoon(at(8, 0, 0), eight, w))
	assert.False(t, DueSoon(at(7, 50, 0), eight, w))
	assert.True(t, DueSoon(at(8, 0, 1), eight, w))
	assert.True(t, DueSoon(at(8, 0, 30), eight, w), "the feeding minute itself")
	assert.True(t, DueSoon(at(8, 0, 59), eight, w))
	assert.False(t, DueSoon(at(8, 1, 0), eight, w))
	assert.True(t, DueSoon(at(23, 58, 0), model.ClockTime{Hour: 0, Minute: 1}, w))
}
