package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

func TestServiceEntryToCandidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   ServiceEntry
		want    string
		wantErr error
	}{
		{
			name: "routable ipv6 preferred",
			entry: ServiceEntry{
				Instance: "kitchen_3_aabbccddeeff0011",
				Text:     []string{"v=1", "gr=kitchen", "dt=3"},
				Addrs:    []net.IP{net.ParseIP("fe80::1"), net.ParseIP("192.168.1.5"), net.ParseIP("fd00::5")},
			},
			want: "fd00::5",
		},
		{
			name: "ipv4 over link-local",
			entry: ServiceEntry{
				Instance: "kitchen_3_aabbccddeeff0011",
				Addrs:    []net.IP{net.ParseIP("fe80::1"), net.ParseIP("192.168.1.5")},
			},
			want: "::ffff:192.168.1.5",
		},
		{
			name: "link-local as last resort",
			entry: ServiceEntry{
				Instance: "kitchen_3_aabbccddeeff0011",
				Addrs:    []net.IP{net.ParseIP("fe80::1")},
			},
			want: "fe80::1",
		},
		{
			name:    "no address",
			entry:   ServiceEntry{Instance: "kitchen_3_aabbccddeeff0011"},
			wantErr: ErrNoAddress,
		},
		{
			name: "malformed instance",
			entry: ServiceEntry{
				Instance: "printer",
				Addrs:    []net.IP{net.ParseIP("fd00::5")},
			},
			wantErr: ident.ErrMalformedName,
		},
		{
			name: "type mismatch",
			entry: ServiceEntry{
				Instance: "kitchen_3_aabbccddeeff0011",
				Text:     []string{"dt=2"},
				Addrs:    []net.IP{net.ParseIP("fd00::5")},
			},
			wantErr: ErrTypeMismatch,
		},
		{
			name: "newer protocol",
			entry: ServiceEntry{
				Instance: "kitchen_3_aabbccddeeff0011",
				Text:     []string{"v=2", "dt=3"},
				Addrs:    []net.IP{net.ParseIP("fd00::5")},
			},
			wantErr: ErrVersion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.entry.ToCandidate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.entry.Instance, c.Name)
			assert.Equal(t, tt.want, c.Address.String())
		})
	}
}

func TestTXTRecords(t *testing.T) {
	txt, err := EncodeTXT(ident.MustName("living_room_2_0011223344556677"))
	require.NoError(t, err)

	strs := TXTRecordsToStrings(txt)
	assert.Equal(t, []string{"dt=2", "gr=living_room", "v=1"}, strs)
	assert.Equal(t, txt, StringsToTXTRecords(strs))

	_, err = EncodeTXT(ident.MustName("nogroup"))
	assert.Error(t, err)
}

type recordingSink struct {
	mu     sync.Mutex
	names  []string
	reject bool
}

func (s *recordingSink) Candidate(name string, addr ident.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return errors.New("queue full")
	}
	s.names = append(s.names, name)
	return nil
}

func (s *recordingSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func fakeBrowse(entries ...ServiceEntry) browseFunc {
	return func(ctx context.Context, out chan<- ServiceEntry) error {
		for _, e := range entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}
}

func TestBrowserRound(t *testing.T) {
	sink := &recordingSink{}
	b := NewBrowser(BrowserConfig{Interval: time.Second, Window: 100 * time.Millisecond}, sink)
	b.browse = fakeBrowse(
		ServiceEntry{Instance: "kitchen_3_aabbccddeeff0011", Addrs: []net.IP{net.ParseIP("fd00::1")}},
		ServiceEntry{Instance: "kitchen_3_aabbccddeeff0011", Addrs: []net.IP{net.ParseIP("fd00::1")}},
		ServiceEntry{Instance: "noise"},
		ServiceEntry{Instance: "kitchen_2_1122334455667788", Addrs: []net.IP{net.ParseIP("10.0.0.2")}},
	)

	n, err := b.Round(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"kitchen_3_aabbccddeeff0011", "kitchen_2_1122334455667788"}, sink.got())
}

func TestBrowserRoundSinkRejects(t *testing.T) {
	sink := &recordingSink{reject: true}
	b := NewBrowser(DefaultBrowserConfig(), sink)
	b.browse = fakeBrowse(ServiceEntry{Instance: "kitchen_3_aabbccddeeff0011", Addrs: []net.IP{net.ParseIP("fd00::1")}})

	n, err := b.Round(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBrowserRoundBrowseError(t *testing.T) {
	b := NewBrowser(DefaultBrowserConfig(), &recordingSink{})
	b.browse = func(ctx context.Context, out chan<- ServiceEntry) error {
		return errors.New("no multicast")
	}
	n, err := b.Round(context.Background())
	assert.EqualError(t, err, "no multicast")
	assert.Zero(t, n)
}

func TestBrowserRetriesFailedRounds(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	b := NewBrowser(BrowserConfig{Interval: time.Hour, Window: time.Second}, &recordingSink{})
	b.backoff = NewBackoff(time.Hour)
	b.backoff.initial, b.backoff.current, b.backoff.jitter = 5*time.Millisecond, 5*time.Millisecond, 0
	b.browse = func(ctx context.Context, out chan<- ServiceEntry) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("no multicast")
	}

	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	// With an hour between regular rounds, only the backoff can retry.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBrowserStartStop(t *testing.T) {
	sink := &recordingSink{}
	b := NewBrowser(BrowserConfig{Interval: 10 * time.Millisecond, Window: 5 * time.Millisecond}, sink)
	b.browse = fakeBrowse(ServiceEntry{Instance: "kitchen_3_aabbccddeeff0011", Addrs: []net.IP{net.ParseIP("fd00::1")}})

	require.NoError(t, b.Start(context.Background()))
	assert.Error(t, b.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(sink.got()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	b.Stop()
	b.Stop()
}

func TestBrowserConfigDefaults(t *testing.T) {
	b := NewBrowser(BrowserConfig{Interval: time.Second, Window: time.Minute}, SinkFunc(func(string, ident.Address) error { return nil }))
	assert.Equal(t, time.Second, b.config.Window)

	b = NewBrowser(BrowserConfig{}, nil)
	assert.Equal(t, DefaultBrowseInterval, b.config.Interval)
	assert.Equal(t, DefaultBrowseWindow, b.config.Window)
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(8 * time.Second)
	b.jitter = 0

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, exp := range want {
		assert.Equal(t, exp, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, 5, b.Failures())

	b.Reset()
	assert.Zero(t, b.Failures())
	assert.Equal(t, time.Second, b.Current())
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	b := NewBackoff(time.Minute)
	for range 20 {
		b.Reset()
		d := b.Next()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, time.Duration(float64(time.Second)*1.25))
	}
}

func TestBackoffCapBelowInitial(t *testing.T) {
	b := NewBackoff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b.Current())
	assert.LessOrEqual(t, b.Next(), 100*time.Millisecond)
}
