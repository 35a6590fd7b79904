package scanner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSMHappyPath(t *testing.T) {
	s := New()
	require.NoError(t, s.Transition(StateScanning))
	require.NoError(t, s.Transition(StatePreviewing))
	require.NoError(t, s.Transition(StateCropping))
	require.NoError(t, s.Transition(StatePreviewing))
	require.NoError(t, s.Transition(StateConfirmed))
	require.NoError(t, s.Transition(StateIdle))
	assert.Equal(t, StateIdle, s.State())
}

func TestFSMRejectsIllegalEdge(t *testing.T) {
	s := New()
	err := s.Transition(StateConfirmed)
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestFSMErrorBranches(t *testing.T) {
	assert.True(t, CanTransition(StateScanning, StateError))
	assert.True(t, CanTransition(StateCropping, StateError))
	assert.True(t, CanTransition(StateError, StateIdle))
	assert.False(t, CanTransition(StatePreviewing, StateError))
}

func squareQuad() Quad {
	return Quad{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
}

func TestQuadIsPureAcceptsConvexSquare(t *testing.T) {
	assert.True(t, squareQuad().IsPure())
}

func TestQuadRejectsNegativeCoordinate(t *testing.T) {
	q := squareQuad()
	q[0].X = -1
	assert.False(t, q.IsPure())
}

func TestQuadRejectsDuplicatePoint(t *testing.T) {
	q := squareQuad()
	q[1] = q[0]
	assert.False(t, q.IsPure())
}

func TestQuadRejectsConcave(t *testing.T) {
	q := Quad{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 3, Y: 3}, {X: 0, Y: 10}}
	assert.False(t, q.IsPure())
}

func TestQuadRejectsCollinearEdge(t *testing.T) {
	q := Quad{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}
	assert.False(t, q.IsPure())
}

type fakeCorrector struct {
	out []byte
	err error
}

func (f fakeCorrector) CorrectPerspective(_ []byte, _ Quad) ([]byte, error) {
	return f.out, f.err
}

func TestCropRejectsImpureQuad(t *testing.T) {
	q := squareQuad()
	q[0].X = -1

	_, err := Crop(fakeCorrector{out: []byte("x")}, []byte("in"), q)
	require.Error(t, err)
}

func TestCropReturnsCorrectedBlob(t *testing.T) {
	result, err := Crop(fakeCorrector{out: []byte("warped")}, []byte("in"), squareQuad())
	require.NoError(t, err)
	assert.Equal(t, []byte("warped"), result.Blob)
	assert.False(t, result.Skipped)
}

func TestCropPropagatesCorrectorError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := Crop(fakeCorrector{err: wantErr}, []byte("in"), squareQuad())
	require.ErrorIs(t, err, wantErr)
}

func TestSkipCropMarksSkipped(t *testing.T) {
	result := SkipCrop([]byte("raw"))
	assert.True(t, result.Skipped)
	assert.Equal(t, []byte("raw"), result.Blob)
}
