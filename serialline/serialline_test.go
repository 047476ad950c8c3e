package serialline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodecode-go/sched"
)

func harness(t *testing.T, max int) (*sched.Scheduler, *Reader, *[]string) {
	t.Helper()
	s := sched.New(8)
	require.NoError(t, s.Init())
	r := New(s, 64, max)
	require.NoError(t, r.Init())
	var lines []string
	s.Start(sched.NewProcess("sink", func(_ *sched.Process, ev sched.Event, data any) {
		if ev == sched.EventSerialLine {
			lines = append(lines, data.(string))
		}
	}), nil)
	return s, r, &lines
}

func feed(r *Reader, s string) {
	for i := 0; i < len(s); i++ {
		r.InputByte(s[i])
	}
}

func run(s *sched.Scheduler) {
	for i := 0; i < 32 && s.RunOnce() > 0; i++ {
	}
}

func TestLinesSplitOnLFIgnoringCR(t *testing.T) {
	s, r, lines := harness(t, 80)
	feed(r, "help\r\nstat")
	run(s)
	assert.Equal(t, []string{"help"}, *lines)

	feed(r, "us\n\n")
	run(s)
	assert.Equal(t, []string{"help", "status", ""}, *lines)
}

func TestOverlongLineTruncated(t *testing.T) {
	s, r, lines := harness(t, 16)
	feed(r, strings.Repeat("x", 20)+"\n")
	feed(r, "ok\n")
	run(s)
	assert.Equal(t, []string{strings.Repeat("x", 16), "ok"}, *lines)
	assert.Equal(t, uint32(1), r.Truncated)
}

func TestFullBufferCountsDrops(t *testing.T) {
	_, r, _ := harness(t, 80)
	feed(r, strings.Repeat("y", 70))
	assert.Equal(t, uint32(6), r.Drops())
}

func TestNothingPolledWithoutInput(t *testing.T) {
	s, _, lines := harness(t, 80)
	assert.Equal(t, 0, s.RunOnce())
	assert.Empty(t, *lines)
}
