// Package network reports whether the host has any usable network path, so
// failed exchanges can be told apart as "offline" or "server unreachable".
package network

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/net"
)

// Connectivity reports whether a network path is available.
type Connectivity interface {
	Connected(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Connected(ctx context.Context) bool {
	return f(ctx)
}

type interfaceLister func(ctx context.Context) (net.InterfaceStatList, error)

type systemConnectivity struct {
	list interfaceLister
}

// System returns a Connectivity that looks for an interface that is up, is
// not a loopback, and carries at least one address.
func System() Connectivity {
	return &systemConnectivity{list: net.InterfacesWithContext}
}

func (s *systemConnectivity) Connected(ctx context.Context) bool {
	ifaces, err := s.list(ctx)
	if err != nil {
		// unknown is treated as connected so transport errors keep their own classification
		return true
	}
	for _, iface := range ifaces {
		if usable(iface) {
			return true
		}
	}
	return false
}

func usable(iface net.InterfaceStat) bool {
	if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
		return false
	}
	for _, addr := range iface.Addrs {
		if addr.Addr != "" && !strings.HasPrefix(addr.Addr, "fe80:") {
			return true
		}
	}
	return false
}

// Static is a Connectivity whose answer is set explicitly.
type Static struct {
	offline atomic.Bool
}

// NewStatic returns a Static reporting connected.
func NewStatic(connected bool) *Static {
	s := &Static{}
	s.Set(connected)
	return s
}

func (s *Static) Set(connected bool) {
	s.offline.Store(!connected)
}

func (s *Static) Connected(context.Context) bool {
	return !s.offline.Load()
}
