package sh

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mojo.go/pkg/config"
	"github.com/robotalks/mojo.go/pkg/mojo"
	"github.com/robotalks/mojo.go/pkg/mojo/sim"
)

func newTestShell(board *sim.Board, flash bool) *Shell {
	conf := config.NewConfig()
	conf.Port, conf.Flash, conf.Verify = "sim", flash, true
	l := mojo.NewLoader(board.Open)
	l.Timing = mojo.Timing{
		AckTimeout:    500 * time.Millisecond,
		LaunchTimeout: 500 * time.Millisecond,
		PollInterval:  time.Millisecond,
		ResetPulse:    time.Microsecond,
		ResetSettle:   time.Microsecond,
	}
	return &Shell{
		Config:   conf,
		Loader:   l,
		Progress: ioutil.Discard,
		ctx:      context.Background(),
	}
}

func TestUploadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "mojo-sh")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "top.bin")
	payload := []byte("bitstream")
	require.NoError(t, ioutil.WriteFile(path, payload, 0644))

	testCases := []struct {
		name  string
		flash bool
	}{
		{name: "flash", flash: true},
		{name: "volatile", flash: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			board := sim.NewBoard()
			s := newTestShell(board, tc.flash)
			defer s.Loader.Close()
			require.NoError(t, s.UploadFile(path))
			require.True(t, board.Running())
			if tc.flash {
				require.Equal(t, payload, board.Flash())
				require.Empty(t, board.RAM())
			} else {
				require.Equal(t, payload, board.RAM())
				require.Empty(t, board.Flash())
			}
		})
	}

	s := newTestShell(sim.NewBoard(), true)
	defer s.Loader.Close()
	err = s.UploadFile(filepath.Join(dir, "missing.bin"))
	require.True(t, mojo.IsKind(err, mojo.KindInvalidArgument))
}
