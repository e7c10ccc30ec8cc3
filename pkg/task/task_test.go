package task_test

import (
	"errors"
	"testing"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-intray/pkg/schema"
	source "github.com/mutablelogic/go-intray/pkg/source"
	task "github.com/mutablelogic/go-intray/pkg/task"
	assert "github.com/stretchr/testify/assert"
)

func Test_Task_done(t *testing.T) {
	assert := assert.New(t)

	var fractions []float64
	tk := task.New(1, source.Bytes("file", []byte("data")), task.WithProgress(func(f float64) {
		fractions = append(fractions, f)
	}))
	assert.Equal(uint64(1), tk.ID())
	assert.Equal(schema.Pending, tk.State())
	assert.Zero(tk.Progress())

	// Cannot complete a pending task
	assert.False(tk.Complete(time.Second))

	assert.True(tk.Begin())
	assert.False(tk.Begin())
	assert.Equal(schema.InProgress, tk.State())

	assert.Equal(0.25, tk.Advance(0, 4))
	assert.Equal(0.5, tk.Advance(1, 4))
	assert.Equal(0.5, tk.Advance(0, 4))
	assert.Equal(1.0, tk.Advance(3, 4))
	assert.Equal([]float64{0.25, 0.5, 0.5, 1.0}, fractions)

	assert.True(tk.Complete(time.Second))
	assert.Equal(schema.Done, tk.State())
	assert.Equal(time.Second, tk.Elapsed())
	assert.NoError(tk.Err())

	// Terminal states are final
	assert.False(tk.Fail(errors.New("late")))
	assert.Equal(schema.Done, tk.State())
}

func Test_Task_failed(t *testing.T) {
	assert := assert.New(t)

	tk := task.New(2, source.Bytes("file", []byte("data")))
	assert.True(tk.Begin())
	tk.Advance(0, 2)

	cause := errors.New("boom")
	assert.True(tk.Fail(cause))
	assert.Equal(schema.Failed, tk.State())
	assert.Equal(cause, tk.Err())
	assert.Equal(0.5, tk.Progress())
	assert.False(tk.Complete(time.Second))

	status := tk.Status()
	assert.Equal("file", status.Name)
	assert.Equal(int64(4), status.Size)
	assert.Equal("boom", status.Error)
	assert.Contains(tk.String(), `"failed"`)
}

func Test_Task_failPending(t *testing.T) {
	tk := task.New(3, source.Bytes("file", nil))
	assert.True(t, tk.Fail(errors.New("stopped")))
	assert.Equal(t, schema.Failed, tk.State())
}
