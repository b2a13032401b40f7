// Package eegio loads and persists recordings and canonical maps: the
// delimited sample table, the map table, EDF recordings and the channel
// list that names the electrodes.
package eegio

import (
	"fmt"
	"strings"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

// Channel names one electrode.
type Channel struct {
	Name string
}

// ChannelList is the ordered electrode list of a recording. Position i
// names column i of the sample matrix.
type ChannelList []Channel

// ParseChannelList builds a ChannelList from names. Names are trimmed and
// must be non-empty and unique.
func ParseChannelList(names []string) (ChannelList, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty channel list", microstate.ErrFormat)
	}
	seen := make(map[string]int, len(names))
	out := make(ChannelList, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("%w: channel %d has no name", microstate.ErrFormat, i)
		}
		if j, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: channel %q repeated at %d and %d", microstate.ErrFormat, n, j, i)
		}
		seen[n] = i
		out[i] = Channel{Name: n}
	}
	return out, nil
}

// DefaultChannels names n electrodes E1..En.
func DefaultChannels(n int) ChannelList {
	out := make(ChannelList, n)
	for i := range out {
		out[i] = Channel{Name: fmt.Sprintf("E%d", i+1)}
	}
	return out
}

// Validate checks that the list names exactly electrodes channels.
func (cl ChannelList) Validate(electrodes int) error {
	if len(cl) != electrodes {
		return fmt.Errorf("%w: %d channel names for %d electrodes", microstate.ErrShape, len(cl), electrodes)
	}
	return nil
}

// Names returns the channel names in order.
func (cl ChannelList) Names() []string {
	out := make([]string, len(cl))
	for i, c := range cl {
		out[i] = c.Name
	}
	return out
}

// Recording is one loaded EEG recording.
type Recording struct {
	Name         string
	Channels     ChannelList
	Samples      microstate.Matrix
	SamplingRate float64
}

// Validate checks the matrix shape and, when present, the channel list.
func (r *Recording) Validate() error {
	if err := r.Samples.Validate(); err != nil {
		return err
	}
	if r.Channels != nil && r.Samples.Samples() > 0 {
		return r.Channels.Validate(r.Samples.Electrodes())
	}
	return nil
}
