package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

var custom = model.FeedingSchedule{
	FeedingTime:          model.ClockTime{Hour: 19, Minute: 45},
	Quantity:             7,
	UnitDispenseDuration: 850 * time.Millisecond,
}

func TestEncodeLayout(t *testing.T) {
	rec, err := Encode(custom)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{SchemaVersion}, []byte("19:4570850")...), rec)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewMemoryMedium()
	s := New(m)

	require.NoError(t, s.Save(custom))
	assert.Equal(t, custom, s.Load())
	assert.Equal(t, 1, m.Commits())
}

func TestBlankMediumSeedsDefaultsAndRewritesMarker(t *testing.T) {
	m := NewMemoryMedium()
	require.Equal(t, BlankByte, m.Bytes()[0])

	var reasons []error
	s := New(m, WithReinitHook(func(err error) { reasons = append(reasons, err) }))

	got := s.Load()

	assert.Equal(t, model.DefaultSchedule(), got)
	assert.Equal(t, SchemaVersion, m.Bytes()[0])
	assert.Equal(t, 1, m.Commits())
	require.Len(t, reasons, 1)
	assert.ErrorIs(t, reasons[0], ErrSchemaMismatch)
}

func TestDoubleLoadIsIdempotent(t *testing.T) {
	m := NewMemoryMedium()
	s := New(m)

	first := s.Load()
	afterFirst := m.Bytes()
	second := s.Load()

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, m.Bytes())
	assert.Equal(t, 1, m.Commits(), "second load must not rewrite")
}

func TestForeignMarkerIsReinitialised(t *testing.T) {
	old := append([]byte{0x00}, []byte("06:0031000")...)
	m := NewMemoryMediumWith(old)

	assert.Equal(t, model.DefaultSchedule(), New(m).Load())
	assert.Equal(t, SchemaVersion, m.Bytes()[0])
}

func TestCorruptFieldsAreReinitialised(t *testing.T) {
	bad := append([]byte{SchemaVersion}, []byte("25:00A1200")...)
	m := NewMemoryMediumWith(bad)

	var reason error
	got := New(m, WithReinitHook(func(err error) { reason = err })).Load()

	assert.Equal(t, model.DefaultSchedule(), got)
	assert.ErrorIs(t, reason, ErrCorruptRecord)
}

func TestDecodeRejectsZeroDuration(t *testing.T) {
	_, err := Decode(append([]byte{SchemaVersion}, []byte("08:0020000")...))
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestDecodeShortRecord(t *testing.T) {
	_, err := Decode([]byte{SchemaVersion, '0'})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

type failingMedium struct {
	readErr, commitErr error
	commits            int
}

func (f *failingMedium) ReadRecord() ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return Blank(), nil
}

func (f *failingMedium) Commit([]byte) error {
	f.commits++
	return f.commitErr
}

func (f *failingMedium) Close() error { return nil }

func TestReadErrorFallsBackToDefaults(t *testing.T) {
	f := &failingMedium{readErr: errors.New("i2c nack")}
	var readErr, reinit error
	s := New(f,
		WithReadErrorHook(func(err error) { readErr = err }),
		WithReinitHook(func(err error) { reinit = err }))

	assert.Equal(t, model.DefaultSchedule(), s.Load())
	assert.Zero(t, f.commits, "a failed read must not overwrite the record")
	assert.EqualError(t, readErr, "i2c nack")
	assert.NoError(t, reinit)
}

// flakyMedium fails the next n reads and otherwise delegates.
type flakyMedium struct {
	*MemoryMedium
	fail int
}

func (f *flakyMedium) ReadRecord() ([]byte, error) {
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("bus busy")
	}
	return f.MemoryMedium.ReadRecord()
}

func TestSavedScheduleSurvivesTransientReadError(t *testing.T) {
	f := &flakyMedium{MemoryMedium: NewMemoryMedium()}
	s := New(f)
	require.NoError(t, s.Save(custom))
	commits := f.Commits()

	f.fail = 1
	assert.Equal(t, model.DefaultSchedule(), s.Load())
	assert.Equal(t, custom, s.Load())
	assert.Equal(t, commits, f.Commits())
}

func TestSaveReportsCommitFailure(t *testing.T) {
	boom := errors.New("write protect")
	f := &failingMedium{commitErr: boom}

	err := New(f).Save(custom)
	assert.ErrorIs(t, err, boom)
}

func TestSaveRejectsInvalidSchedule(t *testing.T) {
	m := NewMemoryMedium()
	bad := custom
	bad.Quantity = 0

	err := New(m).Save(bad)
	assert.ErrorIs(t, err, model.ErrInvalidField)
	assert.Zero(t, m.Commits())
}

func TestResetWritesDefaults(t *testing.T) {
	m := NewMemoryMedium()
	s := New(m)
	require.NoError(t, s.Save(custom))

	require.NoError(t, s.Reset())
	assert.Equal(t, model.DefaultSchedule(), s.Load())
}

func TestInspectDoesNotRepair(t *testing.T) {
	m := NewMemoryMedium()
	in, err := New(m).Inspect()
	require.NoError(t, err)

	assert.Equal(t, BlankByte, in.Marker)
	assert.Nil(t, in.Schedule)
	assert.ErrorIs(t, in.Err, ErrSchemaMismatch)
	assert.Equal(t, "ffffffffffffffffffffff", in.Hex())
	assert.Zero(t, m.Commits())
}

func TestFileMediumRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "feeder.rec")
	fm, err := NewFileMedium(path)
	require.NoError(t, err)
	s := New(fm)

	assert.Equal(t, model.DefaultSchedule(), s.Load())
	require.NoError(t, s.Save(custom))

	reopened, err := NewFileMedium(path)
	require.NoError(t, err)
	assert.Equal(t, custom, New(reopened).Load())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestBadgerMediumRoundTrip(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	bm := NewBadgerMedium(db)
	t.Cleanup(func() { _ = bm.Close() })

	s := New(bm)
	assert.Equal(t, model.DefaultSchedule(), s.Load())

	require.NoError(t, s.Save(custom))
	assert.Equal(t, custom, s.Load())

	raw, err := bm.ReadRecord()
	require.NoError(t, err)
	assert.Len(t, raw, RecordSize)
}
